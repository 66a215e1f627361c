package alert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrAudioUnavailable は音声を再生できる環境が無い場合のエラー。
var ErrAudioUnavailable = errors.New("音声出力が利用できません")

// Player はWAVデータを再生する。
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// defaultPlayers は探索する再生コマンド（PulseAudio, ALSA, macOS の順）。
var defaultPlayers = []string{"paplay", "aplay", "afplay"}

// CommandPlayer は外部の再生コマンドでWAVを鳴らす。
type CommandPlayer struct {
	candidates []string
	lookPath   func(string) (string, error)
	run        func(ctx context.Context, name string, args ...string) error
}

// NewCommandPlayer は新しいCommandPlayerを生成する。
// candidates を省略すると paplay, aplay, afplay の順に探す。
func NewCommandPlayer(candidates ...string) *CommandPlayer {
	if len(candidates) == 0 {
		candidates = defaultPlayers
	}
	return &CommandPlayer{
		candidates: candidates,
		lookPath:   exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Play はWAVデータを一時ファイルに書き出して再生する。
// 再生コマンドが見つからない場合は ErrAudioUnavailable を返す。
func (p *CommandPlayer) Play(ctx context.Context, wav []byte) error {
	bin, err := p.find()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "opsdesk-chime-*.wav")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(wav); err != nil {
		_ = f.Close()
		return fmt.Errorf("音声データの書き込みに失敗: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("音声データの書き込みに失敗: %w", err)
	}

	if err := p.run(ctx, bin, f.Name()); err != nil {
		return fmt.Errorf("%w: %s の実行に失敗: %w", ErrAudioUnavailable, bin, err)
	}
	return nil
}

// find は利用可能な再生コマンドを探す。
func (p *CommandPlayer) find() (string, error) {
	for _, name := range p.candidates {
		if path, err := p.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrAudioUnavailable
}
