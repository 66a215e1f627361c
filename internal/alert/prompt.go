package alert

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/huh"
)

// HuhPrompter は端末上の確認フォームで利用者に可否を尋ねる。
type HuhPrompter struct {
	// mu は同時に複数のフォームを表示しないためのロック。
	mu sync.Mutex
}

// NewHuhPrompter は新しいHuhPrompterを生成する。
func NewHuhPrompter() *HuhPrompter {
	return &HuhPrompter{}
}

// Confirm は確認フォームを表示し、利用者の回答を返す。
// フォームを中断した場合は拒否として扱う。
func (p *HuhPrompter) Confirm(ctx context.Context, title, description string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("許可する").
				Negative("許可しない").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
