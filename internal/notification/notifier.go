package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/pkg/event"
)

// Notifier は業務ロジックから通知を発行する入口。
// 作成と配信を同じロックの中で行うため、ストリームへの配信順は作成順と一致する。
type Notifier struct {
	mu     sync.Mutex
	store  *Store
	hub    *Hub
	logger zerolog.Logger
}

// NewNotifier は新しいNotifierを生成する。
func NewNotifier(store *Store, hub *Hub, logger zerolog.Logger) *Notifier {
	return &Notifier{store: store, hub: hub, logger: logger}
}

// Notify は通知レコードを作成し、接続中のすべてのストリームへ配信する。
func (n *Notifier) Notify(ctx context.Context, kind event.Kind, message string) (event.Record, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec, err := n.store.Create(ctx, kind, message)
	if err != nil {
		return event.Record{}, err
	}
	delivered := n.hub.Publish(rec)
	n.logger.Debug().
		Int64("id", rec.ID).
		Str("type", string(rec.Type)).
		Int("delivered", delivered).
		Msg("通知を配信しました")
	return rec, nil
}

// TaskCreated はタスク作成の通知を発行する。
func (n *Notifier) TaskCreated(ctx context.Context, title string) (event.Record, error) {
	return n.Notify(ctx, event.KindTaskCreated, fmt.Sprintf("新しいタスク「%s」が作成されました", title))
}

// TaskAccepted は技術者によるタスク受諾の通知を発行する。
func (n *Notifier) TaskAccepted(ctx context.Context, title, technician string) (event.Record, error) {
	return n.Notify(ctx, event.KindTaskAccepted, fmt.Sprintf("%sさんがタスク「%s」を受諾しました", technician, title))
}

// TaskRejected は技術者によるタスク却下の通知を発行する。
func (n *Notifier) TaskRejected(ctx context.Context, title, technician string) (event.Record, error) {
	return n.Notify(ctx, event.KindTaskRejected, fmt.Sprintf("%sさんがタスク「%s」を却下しました", technician, title))
}

// TaskCompleted はタスク完了の通知を発行する。
func (n *Notifier) TaskCompleted(ctx context.Context, title string) (event.Record, error) {
	return n.Notify(ctx, event.KindTaskCompleted, fmt.Sprintf("タスク「%s」が完了しました", title))
}

// TechnicianAdded は技術者登録の通知を発行する。
func (n *Notifier) TechnicianAdded(ctx context.Context, name string) (event.Record, error) {
	return n.Notify(ctx, event.KindTechnicianAdded, fmt.Sprintf("技術者「%s」が登録されました", name))
}

// InvoiceCreated は請求書作成の通知を発行する。
func (n *Notifier) InvoiceCreated(ctx context.Context, number string) (event.Record, error) {
	return n.Notify(ctx, event.KindInvoiceCreated, fmt.Sprintf("請求書 %s が作成されました", number))
}
