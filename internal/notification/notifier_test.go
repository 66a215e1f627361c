package notification

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/pkg/event"
)

func TestNotifier(t *testing.T) {
	t.Parallel()

	t.Run("作成したレコードが購読者に配信されること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)
		hub := NewHub()
		sub := hub.Subscribe(4)
		n := NewNotifier(store, hub, zerolog.Nop())

		rec, err := n.TaskAccepted(context.Background(), "エアコン点検", "佐藤")
		if err != nil {
			t.Fatalf("TaskAccepted()でエラーが発生: %v", err)
		}
		got := <-sub.C
		if got.ID != rec.ID || got.Type != event.KindTaskAccepted {
			t.Errorf("配信レコード = %+v, want id=%d", got, rec.ID)
		}
		if !strings.Contains(got.Message, "佐藤") || !strings.Contains(got.Message, "エアコン点検") {
			t.Errorf("メッセージ = %q", got.Message)
		}
	})

	t.Run("各業務イベントが対応する種別で記録されること", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)
		n := NewNotifier(store, NewHub(), zerolog.Nop())
		ctx := context.Background()

		calls := []struct {
			want event.Kind
			fn   func() (event.Record, error)
		}{
			{event.KindTaskCreated, func() (event.Record, error) { return n.TaskCreated(ctx, "配線工事") }},
			{event.KindTaskAccepted, func() (event.Record, error) { return n.TaskAccepted(ctx, "配線工事", "田中") }},
			{event.KindTaskRejected, func() (event.Record, error) { return n.TaskRejected(ctx, "配線工事", "鈴木") }},
			{event.KindTaskCompleted, func() (event.Record, error) { return n.TaskCompleted(ctx, "配線工事") }},
			{event.KindTechnicianAdded, func() (event.Record, error) { return n.TechnicianAdded(ctx, "高橋") }},
			{event.KindInvoiceCreated, func() (event.Record, error) { return n.InvoiceCreated(ctx, "INV-0042") }},
		}
		for _, c := range calls {
			rec, err := c.fn()
			if err != nil {
				t.Fatalf("%s: エラーが発生: %v", c.want, err)
			}
			if rec.Type != c.want {
				t.Errorf("種別 = %s, want %s", rec.Type, c.want)
			}
		}
	})

	t.Run("作成に失敗した場合は配信しないこと", func(t *testing.T) {
		t.Parallel()
		store := setupTestStore(t)
		hub := NewHub()
		sub := hub.Subscribe(1)
		n := NewNotifier(store, hub, zerolog.Nop())

		if _, err := n.Notify(context.Background(), event.KindTaskCreated, ""); err == nil {
			t.Fatal("Notify()がエラーを返すべきだが、nilが返った")
		}
		select {
		case rec := <-sub.C:
			t.Errorf("失敗時にレコードが配信された: %+v", rec)
		default:
		}
	})
}
