package watch

import (
	"cmp"
	"context"
	"slices"

	"github.com/nao1215/opsdesk/pkg/event"
)

// Reconciler は未読件数の増加から新着通知を検出する。
//
// 最初の観測は基準値として記録するだけで新着を返さない。以降は未読件数が
// 前回より増えた分だけ、ID昇順で末尾のレコードを新着として返す。
// 件数が増えていなければ、入れ替わりで新しいレコードがあっても新着とはみなさない。
//
// Observe はセッションのイベントループからのみ呼ぶ。
type Reconciler struct {
	source    UnreadSource
	last      int
	baselined bool
}

// NewReconciler は新しいReconcilerを生成する。
func NewReconciler(source UnreadSource) *Reconciler {
	return &Reconciler{source: source}
}

// Fetch は未読一覧を取得する。状態は変更しない。
func (r *Reconciler) Fetch(ctx context.Context) ([]event.Record, error) {
	return r.source.ListUnread(ctx)
}

// Observe は取得した未読一覧を反映し、新着と判断したレコードをID昇順で返す。
func (r *Reconciler) Observe(unread []event.Record) []event.Record {
	count := len(unread)
	if !r.baselined {
		r.baselined = true
		r.last = count
		return nil
	}

	prev := r.last
	r.last = count
	if count <= prev {
		return nil
	}

	sorted := slices.Clone(unread)
	slices.SortFunc(sorted, func(a, b event.Record) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted[prev:]
}

// Poll は取得と反映を続けて行う。
func (r *Reconciler) Poll(ctx context.Context) ([]event.Record, error) {
	unread, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return r.Observe(unread), nil
}

// Baseline は前回観測した未読件数と、基準値が記録済みかどうかを返す。
func (r *Reconciler) Baseline() (int, bool) {
	return r.last, r.baselined
}
