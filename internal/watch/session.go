package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/internal/alert"
	"github.com/nao1215/opsdesk/pkg/event"
)

// DefaultPollInterval は未読一覧の取得間隔。
const DefaultPollInterval = 2 * time.Second

// dispatchQueueSize は発火待ちキューの長さ。満杯の間に判定した通知は発火せずに捨てる。
const dispatchQueueSize = 256

// ErrSessionRunning は実行中のセッションを再度 Run した場合のエラー。
var ErrSessionRunning = errors.New("セッションはすでに実行中です")

// Dispatcher は新着通知を利用者に知らせる。alert.Dispatcher が満たす。
type Dispatcher interface {
	Dispatch(ctx context.Context, rec event.Record, src alert.Source) alert.Outcome
}

// Client は通知サービスへのアクセス。API が満たす。
type Client interface {
	UnreadSource
	StreamOpener
}

// Status はセッション状態のスナップショット。
type Status struct {
	// Connected はプッシュチャネルが接続済みかどうか。
	Connected bool
	// State はプッシュチャネルの接続状態。
	State State
	// LastObservedUnreadCount は前回のポーリングで観測した未読件数。
	LastObservedUnreadCount int
	// Baselined は最初のポーリングが完了しているかどうか。
	Baselined bool
	// LastPollError は直近のポーリングの失敗。成功すると nil に戻る。
	LastPollError error
	// DroppedAlerts は発火待ちが満杯で捨てた通知の累計。
	DroppedAlerts int
}

// SessionOptions はSessionの設定。
type SessionOptions struct {
	// PollInterval は未読一覧の取得間隔。0なら DefaultPollInterval。
	PollInterval time.Duration
	// ReconnectDelay はプッシュチャネルの再接続待ち時間。
	ReconnectDelay time.Duration
	// DedupCapacity は通知済みIDを記憶する件数。0ならIDによる重複排除を行わない。
	DedupCapacity int
	Logger        zerolog.Logger
}

// sessionEvent はイベントループが処理する1件の出来事。
type sessionEvent struct {
	kind    eventKind
	record  event.Record
	state   State
	unread  []event.Record
	pollErr error
}

type eventKind int

const (
	eventPush eventKind = iota
	eventPoll
	eventState
)

// dispatchRequest は発火待ちの通知。
type dispatchRequest struct {
	record event.Record
	source alert.Source
}

// Session は1つのクライアントセッション。
//
// プッシュ受信とポーリングはそれぞれ別のゴルーチンで待ち受けるが、
// 結果はすべてイベントループに送られ、状態の更新と新着判定はループ上で順に行う。
// 発火は専用のゴルーチンが判定順に1件ずつ行う。発火待ちは dispatchQueueSize 件までで、
// 溢れた通知は警告を記録して捨てる。イベントループが発火を待ってプッシュの受信を止めることはない。
type Session struct {
	reconciler *Reconciler
	supervisor *Supervisor
	dispatcher Dispatcher
	seen       *SeenSet
	interval   time.Duration
	logger     zerolog.Logger

	events   chan sessionEvent
	dispatch chan dispatchRequest

	mu      sync.Mutex
	status  Status
	running bool
	cancel  context.CancelFunc
	done    <-chan struct{}
}

// NewSession は新しいSessionを生成する。
func NewSession(client Client, dispatcher Dispatcher, opts SessionOptions) *Session {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s := &Session{
		reconciler: NewReconciler(client),
		dispatcher: dispatcher,
		seen:       NewSeenSet(opts.DedupCapacity),
		interval:   interval,
		logger:     opts.Logger,
		events:     make(chan sessionEvent),
		dispatch:   make(chan dispatchRequest, dispatchQueueSize),
	}
	s.supervisor = NewSupervisor(client, SupervisorOptions{
		ReconnectDelay: opts.ReconnectDelay,
		OnRecord:       func(rec event.Record) { s.post(sessionEvent{kind: eventPush, record: rec}) },
		OnState:        func(st State) { s.post(sessionEvent{kind: eventState, state: st}) },
		Logger:         opts.Logger.With().Str("component", "supervisor").Logger(),
	})
	return s
}

// Status はセッション状態のスナップショットを返す。
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run はセッションを開始し、ctx のキャンセルか Close まで動作する。
// 終了時にはポーリングのタイマー、再接続のタイマー、ストリームをすべて解放している。
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	s.running = true
	s.cancel = cancel
	s.done = ctx.Done()
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.supervisor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.dispatchLoop(ctx)
	}()

	s.logger.Info().Dur("poll_interval", s.interval).Bool("dedup", s.seen != nil).Msg("通知の監視を開始しました")
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			// 終了後の状態通知はループに届かないため、ここで切断済みにする
			s.mu.Lock()
			s.status.State = StateDisconnected
			s.status.Connected = false
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
			s.logger.Info().Msg("通知の監視を終了しました")
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// Close はセッションを終了する。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// post はイベントループに出来事を送る。セッション終了後は捨てる。
func (s *Session) post(ev sessionEvent) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-done:
	}
}

// pollLoop は開始直後と一定間隔ごとに未読一覧を取得する。
func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		unread, err := s.reconciler.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		s.post(sessionEvent{kind: eventPoll, unread: unread, pollErr: err})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchLoop は発火待ちの通知を順に Dispatcher へ渡す。
func (s *Session) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.dispatch:
			s.dispatcher.Dispatch(ctx, req.record, req.source)
		}
	}
}

// handle はイベントループ上で1件の出来事を処理する。
func (s *Session) handle(ev sessionEvent) {
	switch ev.kind {
	case eventState:
		s.mu.Lock()
		s.status.State = ev.state
		s.status.Connected = ev.state == StateConnected
		s.mu.Unlock()

	case eventPush:
		s.enqueue(ev.record, alert.SourcePush)

	case eventPoll:
		if ev.pollErr != nil {
			// 取得の失敗は次の周期で回復するため利用者には知らせない
			s.logger.Warn().Err(ev.pollErr).Msg("未読一覧の取得に失敗")
			s.mu.Lock()
			s.status.LastPollError = ev.pollErr
			s.mu.Unlock()
			return
		}

		fresh := s.reconciler.Observe(ev.unread)
		last, baselined := s.reconciler.Baseline()
		s.mu.Lock()
		s.status.LastObservedUnreadCount = last
		s.status.Baselined = baselined
		s.status.LastPollError = nil
		s.mu.Unlock()

		for _, rec := range fresh {
			s.enqueue(rec, alert.SourcePoll)
		}
	}
}

// enqueue は新着と判断した通知を発火待ちに積む。
// 重複排除が有効な場合、いずれかの経路で通知済みのIDは積まない。
// 発火待ちが満杯なら待たずに捨てる。
func (s *Session) enqueue(rec event.Record, src alert.Source) {
	if s.seen != nil && !s.seen.Add(rec.ID) {
		s.logger.Debug().Int64("id", rec.ID).Stringer("source", src).Msg("通知済みのため発火しません")
		return
	}
	select {
	case s.dispatch <- dispatchRequest{record: rec, source: src}:
	default:
		s.mu.Lock()
		s.status.DroppedAlerts++
		s.mu.Unlock()
		s.logger.Warn().Int64("id", rec.ID).Stringer("source", src).Int("queue", cap(s.dispatch)).Msg("発火待ちが満杯のため通知を捨てました")
	}
}
