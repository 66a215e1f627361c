package watch

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	sse "github.com/tmaxmax/go-sse"

	"github.com/nao1215/opsdesk/pkg/event"
)

// DefaultReconnectDelay は切断から再接続までの固定の待ち時間。
const DefaultReconnectDelay = 3 * time.Second

// State はプッシュチャネルの接続状態。
type State int

const (
	// StateDisconnected は未接続。
	StateDisconnected State = iota
	// StateConnecting は接続中。
	StateConnecting
	// StateConnected は接続済み。
	StateConnected
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// SupervisorOptions はSupervisorの設定。
type SupervisorOptions struct {
	// ReconnectDelay は切断から再接続までの待ち時間。0なら DefaultReconnectDelay。
	ReconnectDelay time.Duration
	// OnRecord は受信した通知レコードを受け取る。
	OnRecord func(event.Record)
	// OnState は状態が変わるたびに呼ばれる。
	OnState func(State)
	Logger  zerolog.Logger
}

// Supervisor はプッシュチャネルの接続を維持する。
//
// 切断されると固定の待ち時間の後に再接続する。再接続のタイマーはSupervisorだけが持ち、
// Close またはコンテキストのキャンセルで必ず止める。
// 解釈できないメッセージは破棄し、接続状態は変えない。
type Supervisor struct {
	opener   StreamOpener
	delay    time.Duration
	onRecord func(event.Record)
	onState  func(State)
	logger   zerolog.Logger

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// NewSupervisor は新しいSupervisorを生成する。
func NewSupervisor(opener StreamOpener, opts SupervisorOptions) *Supervisor {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	onRecord := opts.OnRecord
	if onRecord == nil {
		onRecord = func(event.Record) {}
	}
	onState := opts.OnState
	if onState == nil {
		onState = func(State) {}
	}
	return &Supervisor{
		opener:   opener,
		delay:    delay,
		onRecord: onRecord,
		onState:  onState,
		logger:   opts.Logger,
	}
}

// State は現在の接続状態を返す。
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected は接続済みかどうかを返す。
func (s *Supervisor) Connected() bool {
	return s.State() == StateConnected
}

// Run は接続と再接続を繰り返す。ctx のキャンセルか Close で終了する。
func (s *Supervisor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for {
		s.connect(ctx)
		s.setState(StateDisconnected)
		if ctx.Err() != nil || !s.waitReconnect(ctx) {
			return
		}
	}
}

// Close は接続を閉じ、待機中の再接続を取り消す。
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// connect はストリームを開き、終了するまで読み続ける。
func (s *Supervisor) connect(ctx context.Context) {
	s.setState(StateConnecting)
	body, err := s.opener.OpenStream(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Dur("retry_in", s.delay).Msg("プッシュチャネルに接続できません")
		}
		return
	}
	defer body.Close()

	s.setState(StateConnected)
	s.logger.Info().Msg("プッシュチャネルに接続しました")

	// キャンセル時に読み込みのブロックを解く
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	err = s.consume(body)
	switch {
	case ctx.Err() != nil:
	case errors.Is(err, io.EOF):
		s.logger.Warn().Dur("retry_in", s.delay).Msg("プッシュチャネルが閉じられました")
	default:
		s.logger.Warn().Err(err).Dur("retry_in", s.delay).Msg("プッシュチャネルが切断されました")
	}
}

// consume はイベントを読み、通知レコードを OnRecord に渡す。
// サーバーがストリームを閉じた場合は io.EOF を返す。
func (s *Supervisor) consume(body io.Reader) error {
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			return err
		}

		var rec event.Record
		switch ev.Type {
		case event.TypeNotification:
			rec, err = event.DecodeRecord([]byte(ev.Data))
		case "", "message":
			rec, err = event.DecodeEnvelope([]byte(ev.Data))
		default:
			s.logger.Debug().Str("event", ev.Type).Msg("未対応のイベントを無視しました")
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("data", ev.Data).Msg("不正なメッセージを破棄しました")
			continue
		}
		s.onRecord(rec)
	}
	return io.EOF
}

// waitReconnect は再接続までの待ち時間を待つ。取り消された場合は false を返す。
func (s *Supervisor) waitReconnect(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	timer := time.NewTimer(s.delay)
	s.timer = timer
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.timer == timer {
			s.timer = nil
		}
		s.mu.Unlock()
		timer.Stop()
	}()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		s.onState(state)
	}
}
