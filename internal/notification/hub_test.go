package notification

import (
	"testing"

	"github.com/nao1215/opsdesk/pkg/event"
)

func TestHub(t *testing.T) {
	t.Parallel()

	t.Run("全購読者に作成順で配信されること", func(t *testing.T) {
		t.Parallel()
		hub := NewHub()
		a := hub.Subscribe(8)
		b := hub.Subscribe(8)

		for id := int64(1); id <= 3; id++ {
			if n := hub.Publish(event.Record{ID: id, Type: event.KindTaskCreated}); n != 2 {
				t.Errorf("Publish() = %d, want 2", n)
			}
		}

		for _, sub := range []*Subscription{a, b} {
			for want := int64(1); want <= 3; want++ {
				got := <-sub.C
				if got.ID != want {
					t.Errorf("受信ID = %d, want %d", got.ID, want)
				}
			}
		}
	})

	t.Run("購読前のレコードは配信されないこと", func(t *testing.T) {
		t.Parallel()
		hub := NewHub()
		hub.Publish(event.Record{ID: 1})
		sub := hub.Subscribe(4)
		hub.Publish(event.Record{ID: 2})

		got := <-sub.C
		if got.ID != 2 {
			t.Errorf("受信ID = %d, want 2", got.ID)
		}
		select {
		case rec := <-sub.C:
			t.Errorf("余分なレコードを受信: %+v", rec)
		default:
		}
	})

	t.Run("バッファがあふれた購読者は切断されること", func(t *testing.T) {
		t.Parallel()
		hub := NewHub()
		slow := hub.Subscribe(1)
		fast := hub.Subscribe(4)

		hub.Publish(event.Record{ID: 1})
		hub.Publish(event.Record{ID: 2})

		if !slow.Lagged() {
			t.Error("遅い購読者のLagged()がfalse")
		}
		if fast.Lagged() {
			t.Error("速い購読者のLagged()がtrue")
		}
		if hub.Len() != 1 {
			t.Errorf("Len() = %d, want 1", hub.Len())
		}

		// バッファ済みの1件を受け取った後にチャネルが閉じる
		if rec, ok := <-slow.C; !ok || rec.ID != 1 {
			t.Errorf("1件目 = %+v, ok=%v", rec, ok)
		}
		if _, ok := <-slow.C; ok {
			t.Error("切断後のチャネルが閉じていない")
		}
	})

	t.Run("Closeを複数回呼んでも安全であること", func(t *testing.T) {
		t.Parallel()
		hub := NewHub()
		sub := hub.Subscribe(1)
		sub.Close()
		sub.Close()
		if hub.Len() != 0 {
			t.Errorf("Len() = %d, want 0", hub.Len())
		}
		if _, ok := <-sub.C; ok {
			t.Error("Close後のチャネルが閉じていない")
		}
	})

	t.Run("Hubを閉じると全購読が終了し新規購読も閉じていること", func(t *testing.T) {
		t.Parallel()
		hub := NewHub()
		sub := hub.Subscribe(1)
		hub.Close()

		if _, ok := <-sub.C; ok {
			t.Error("Hub.Close後のチャネルが閉じていない")
		}
		late := hub.Subscribe(1)
		if _, ok := <-late.C; ok {
			t.Error("閉じたHubへの購読が閉じていない")
		}
		late.Close()
	})
}
