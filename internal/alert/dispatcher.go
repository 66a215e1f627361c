package alert

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/internal/prefs"
	"github.com/nao1215/opsdesk/pkg/event"
)

// DefaultDelay は新着検出から発火までの待ち時間。
const DefaultDelay = 100 * time.Millisecond

// Source は新着を検出した経路。
type Source int

const (
	// SourcePush はプッシュチャネルで受信した通知。
	SourcePush Source = iota
	// SourcePoll はポーリングで検出した通知。
	SourcePoll
)

// String は経路名を返す。
func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// Outcome は1回の発火で実際に動作した経路。
type Outcome struct {
	Sound   bool
	Desktop bool
	Banner  bool
}

// Options はDispatcherの構成要素。nil の経路は使われない。
type Options struct {
	Prefs   *prefs.Preferences
	Player  Player
	Desktop Desktop
	Banner  Banner
	// Delay は発火前の待ち時間。0未満なら待たない。0なら DefaultDelay。
	Delay  time.Duration
	Logger zerolog.Logger
}

// Dispatcher は新着通知に対して通知音、デスクトップ通知、バナーを発火する。
type Dispatcher struct {
	prefs   *prefs.Preferences
	player  Player
	desktop Desktop
	banner  Banner
	delay   time.Duration
	logger  zerolog.Logger
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(opts Options) *Dispatcher {
	delay := opts.Delay
	switch {
	case delay == 0:
		delay = DefaultDelay
	case delay < 0:
		delay = 0
	}
	p := opts.Prefs
	if p == nil {
		p = prefs.New(prefs.NewMemoryStore(nil))
	}
	return &Dispatcher{
		prefs:   p,
		player:  opts.Player,
		desktop: opts.Desktop,
		banner:  opts.Banner,
		delay:   delay,
		logger:  opts.Logger,
	}
}

// Dispatch は1件の通知に対して各経路を独立に試みる。
// どの経路の失敗もログに残すだけで呼び出し側には返さない。
// ctx が待機中にキャンセルされた場合は何もしない。
func (d *Dispatcher) Dispatch(ctx context.Context, rec event.Record, src Source) Outcome {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}
		case <-timer.C:
		}
	}

	logger := d.logger.With().Int64("id", rec.ID).Str("type", string(rec.Type)).Stringer("source", src).Logger()
	notice := Notice{ID: rec.ID, Presentation: Describe(rec.Type), Message: rec.Message}

	var out Outcome
	out.Sound = d.playSound(ctx, notice, logger)
	out.Desktop = d.showDesktop(ctx, notice, logger)
	if src == SourcePoll {
		out.Banner = d.showBanner(ctx, notice, logger)
	}
	logger.Debug().
		Bool("sound", out.Sound).
		Bool("desktop", out.Desktop).
		Bool("banner", out.Banner).
		Msg("通知を発火しました")
	return out
}

func (d *Dispatcher) playSound(ctx context.Context, n Notice, logger zerolog.Logger) bool {
	if d.player == nil || !d.prefs.SoundEnabled() {
		return false
	}
	data, err := Synthesize(n.Presentation.Chime)
	if err != nil {
		logger.Warn().Err(err).Msg("通知音の生成に失敗")
		return false
	}
	if err := d.player.Play(ctx, data); err != nil {
		if errors.Is(err, ErrAudioUnavailable) {
			logger.Debug().Err(err).Msg("通知音をスキップしました")
		} else {
			logger.Warn().Err(err).Msg("通知音の再生に失敗")
		}
		return false
	}
	return true
}

func (d *Dispatcher) showDesktop(ctx context.Context, n Notice, logger zerolog.Logger) bool {
	if d.desktop == nil || !d.prefs.DesktopEnabled() {
		return false
	}

	perm := d.desktop.Permission()
	if perm == prefs.PermissionDefault {
		// 許可は初めて必要になったときにだけ尋ねる
		var err error
		perm, err = d.desktop.RequestPermission(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("デスクトップ通知の許可確認に失敗")
			return false
		}
	}
	if perm != prefs.PermissionGranted {
		logger.Debug().Str("permission", string(perm)).Msg("デスクトップ通知をスキップしました")
		return false
	}

	if err := d.desktop.Show(ctx, n); err != nil {
		logger.Warn().Err(err).Msg("デスクトップ通知の表示に失敗")
		return false
	}
	return true
}

func (d *Dispatcher) showBanner(ctx context.Context, n Notice, logger zerolog.Logger) bool {
	if d.banner == nil {
		return false
	}
	if err := d.banner.Show(ctx, n); err != nil {
		logger.Warn().Err(err).Msg("バナーの表示に失敗")
		return false
	}
	return true
}
