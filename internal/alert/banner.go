package alert

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DefaultBannerDuration はバナーの表示時間。
const DefaultBannerDuration = 5 * time.Second

// Banner はアプリ内の一時的なバナー表示。
type Banner interface {
	Show(ctx context.Context, n Notice) error
}

// TerminalBanner は端末に枠付きのバナーを描画する。
// 表示中のバナーは1件だけで、新しいバナーが来ると置き換わる。
type TerminalBanner struct {
	out      io.Writer
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current Notice
	until   time.Time
}

// NewTerminalBanner は新しいTerminalBannerを生成する。
func NewTerminalBanner(out io.Writer, duration time.Duration) *TerminalBanner {
	if duration <= 0 {
		duration = DefaultBannerDuration
	}
	return &TerminalBanner{out: out, duration: duration, now: time.Now}
}

// Show はバナーを描画し、表示時間の間だけ表示中として保持する。
func (b *TerminalBanner) Show(_ context.Context, n Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := fmt.Fprintln(b.out, Render(n)); err != nil {
		return fmt.Errorf("バナーの描画に失敗: %w", err)
	}
	b.current = n
	b.until = b.now().Add(b.duration)
	return nil
}

// Active は表示時間内のバナーを返す。表示中でなければ ok=false。
func (b *TerminalBanner) Active() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.until.IsZero() || !b.now().Before(b.until) {
		return Notice{}, false
	}
	return b.current, true
}

// Render はバナーの文字列表現を返す。
func Render(n Notice) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(n.Presentation.Color).
		Render(n.Presentation.Title)
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E5E7EB")).
		Render(strings.TrimSpace(n.Message))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(n.Presentation.Color).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}
