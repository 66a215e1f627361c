package watch

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/opsdesk/pkg/event"
)

func ids(records []event.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestReconciler_Baseline(t *testing.T) {
	t.Parallel()

	for _, initial := range []int{0, 1, 5, 50} {
		r := NewReconciler(nil)
		unread := make([]int64, initial)
		for i := range unread {
			unread[i] = int64(i + 1)
		}
		assert.Empty(t, r.Observe(unreadRecords(unread...)), "初回の観測では新着を返さない (未読%d件)", initial)

		last, ok := r.Baseline()
		assert.True(t, ok)
		assert.Equal(t, initial, last)
	}
}

func TestReconciler_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("0件から3件に増えたら3件をID昇順で返すこと", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(nil)
		r.Observe(nil)

		fresh := r.Observe(unreadRecords(12, 10, 11))
		assert.Equal(t, []int64{10, 11, 12}, ids(fresh))
	})

	t.Run("5件から5件のままなら入れ替わりがあっても新着なし", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(nil)
		r.Observe(unreadRecords(1, 2, 3, 4, 5))

		// 1件既読になり、1件新着が届いた
		fresh := r.Observe(unreadRecords(2, 3, 4, 5, 6))
		assert.Empty(t, fresh)
		last, _ := r.Baseline()
		assert.Equal(t, 5, last)
	})

	t.Run("増加分だけ末尾のレコードを返すこと", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(nil)
		r.Observe(unreadRecords(1, 2))

		fresh := r.Observe(unreadRecords(1, 2, 7, 8, 9))
		assert.Equal(t, []int64{7, 8, 9}, ids(fresh))
	})

	t.Run("減少した後の増加は前回の件数との差だけ返すこと", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(nil)
		r.Observe(unreadRecords(1, 2, 3))
		assert.Empty(t, r.Observe(unreadRecords(3)))

		fresh := r.Observe(unreadRecords(3, 4, 5))
		assert.Equal(t, []int64{4, 5}, ids(fresh))
	})

	t.Run("入力のスライスを並べ替えないこと", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(nil)
		r.Observe(nil)

		input := unreadRecords(3, 1, 2)
		r.Observe(input)
		assert.Equal(t, []int64{3, 1, 2}, ids(input))
	})
}

func TestReconciler_CountLaw(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	r := NewReconciler(nil)

	var unread []int64
	nextID := int64(1)
	prevCount := -1
	for tick := range 500 {
		// 作成と既読化をランダムに行う
		for range rng.IntN(4) {
			unread = append(unread, nextID)
			nextID++
		}
		for range rng.IntN(3) {
			if len(unread) == 0 {
				break
			}
			i := rng.IntN(len(unread))
			unread = append(unread[:i], unread[i+1:]...)
		}

		fresh := r.Observe(unreadRecords(unread...))
		if prevCount < 0 {
			require.Empty(t, fresh, "tick %d", tick)
		} else {
			want := max(len(unread)-prevCount, 0)
			require.Len(t, fresh, want, "tick %d: %d -> %d", tick, prevCount, len(unread))
		}
		for i := 1; i < len(fresh); i++ {
			require.Less(t, fresh[i-1].ID, fresh[i].ID)
		}
		prevCount = len(unread)
	}
}

func TestReconciler_Poll(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	r := NewReconciler(client)
	ctx := context.Background()

	fresh, err := r.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	client.setUnread(unreadRecords(1)...)
	fresh, err = r.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(fresh))

	client.setListErr(errUnavailable)
	_, err = r.Poll(ctx)
	require.ErrorIs(t, err, errUnavailable)
	last, _ := r.Baseline()
	assert.Equal(t, 1, last, "取得に失敗しても前回の件数を保持する")
}
