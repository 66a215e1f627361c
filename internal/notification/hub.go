package notification

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nao1215/opsdesk/pkg/event"
)

// Subscription は1本のストリーム接続に対応する購読。
// C はPublishされたレコードを作成順に受け取り、購読が終了すると閉じられる。
type Subscription struct {
	// ID は購読の識別子（ログ用）。
	ID string
	// C は配信されるレコードのチャネル。
	C <-chan event.Record

	ch     chan event.Record
	hub    *Hub
	once   sync.Once
	lagged atomic.Bool
}

// Lagged は送信バッファがあふれて購読が打ち切られたかどうかを返す。
func (s *Subscription) Lagged() bool {
	return s.lagged.Load()
}

// Close は購読を終了する。複数回呼んでもよい。
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// closeChannel はチャネルを一度だけ閉じる。hub.mu を保持した状態で呼ぶ。
func (s *Subscription) closeChannel() {
	s.once.Do(func() { close(s.ch) })
}

// Hub は接続中のストリームへ通知レコードをファンアウトする。
//
// Publish は購読者を待たない。バッファが満杯の購読者はレコードを取りこぼす代わりに
// 切断されるため、1本の接続の中で配信順が崩れることはない。
// 切断されたクライアントは再接続し、取りこぼしはポーリングで補われる。
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub は新しいHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe はバッファ長 buffer の購読を追加する。
// Hub が閉じられている場合は、すでに閉じた購読を返す。
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan event.Record, buffer)
	sub := &Subscription{
		ID:  uuid.NewString(),
		C:   ch,
		ch:  ch,
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closeChannel()
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish はレコードを全購読者に配信し、配信できた購読者数を返す。
func (h *Hub) Publish(rec event.Record) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs {
		select {
		case sub.ch <- rec:
			delivered++
		default:
			sub.lagged.Store(true)
			delete(h.subs, sub)
			sub.closeChannel()
		}
	}
	return delivered
}

// Len は現在の購読者数を返す。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close はすべての購読を終了し、以降の購読を受け付けない。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.closeChannel()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	sub.closeChannel()
}
