// 通知クライアントのエントリポイント。
// 端末で通知サービスを監視し、新着通知を通知音・デスクトップ通知・バナーで知らせる。
//
// 使い方:
//
//	notifywatch --base-url http://localhost:8086
//	notifywatch --set-sound off        # 通知音を無効にする
//	notifywatch --set-desktop on       # デスクトップ通知を有効にする
//	notifywatch --token <JWT> --save-token
//	notifywatch --forget-token         # キーリングのトークンを削除する
//	notifywatch --mark-read 42         # 通知42を既読にする
//	notifywatch --read-all             # 全通知を既読にする
//	notifywatch --send task_created --message "配管点検"
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/nao1215/opsdesk/internal/alert"
	"github.com/nao1215/opsdesk/internal/config"
	"github.com/nao1215/opsdesk/internal/credential"
	"github.com/nao1215/opsdesk/internal/prefs"
	"github.com/nao1215/opsdesk/internal/watch"
	"github.com/nao1215/opsdesk/pkg/event"
	"github.com/nao1215/opsdesk/pkg/httpclient"
	"github.com/nao1215/opsdesk/pkg/logging"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notifywatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("notifywatch", pflag.ExitOnError)
	setSound := flags.String("set-sound", "", "通知音を on/off に設定して終了する")
	setDesktop := flags.String("set-desktop", "", "デスクトップ通知を on/off に設定して終了する")
	saveToken := flags.Bool("save-token", false, "--token の値をキーリングに保存して終了する")
	forgetToken := flags.Bool("forget-token", false, "キーリングのトークンを削除して終了する")
	var cmds commands
	flags.Int64Var(&cmds.markRead, "mark-read", 0, "指定したIDの通知を既読にして終了する")
	flags.BoolVar(&cmds.readAll, "read-all", false, "全通知を既読にして終了する")
	flags.StringVar(&cmds.send, "send", "", "指定した種別の通知を作成して終了する")
	flags.StringVar(&cmds.message, "message", "", "--send で作成する通知のメッセージ")

	cfg, err := config.LoadClient(flags, os.Args[1:])
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	p := prefs.New(prefs.NewFileStore(cfg.PreferencesPath))

	if *setSound != "" || *setDesktop != "" {
		return updatePreferences(p, *setSound, *setDesktop)
	}
	if *saveToken || *forgetToken {
		store, err := credential.Open()
		if err != nil {
			return err
		}
		if *forgetToken {
			return forgetStoredToken(store, os.Stdout)
		}
		return storeToken(store, cfg.Token, os.Stdout)
	}

	token, err := resolveToken(cfg.Token, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := watch.NewAPI(httpclient.New(cfg.BaseURL, httpclient.WithToken(token)))
	if cmds.requested() {
		return runCommands(ctx, api, cmds, os.Stdout)
	}

	desktop := alert.NewDBusDesktop(p, alert.NewHuhPrompter(), alert.DefaultDesktopExpiry)
	defer func() { _ = desktop.Close() }()

	dispatcher := alert.NewDispatcher(alert.Options{
		Prefs:   p,
		Player:  alert.NewCommandPlayer(),
		Desktop: desktop,
		Banner:  alert.NewTerminalBanner(os.Stdout, cfg.BannerDuration),
		Delay:   cfg.DispatchDelay,
		Logger:  logger.With().Str("component", "alert").Logger(),
	})

	session := watch.NewSession(api, dispatcher, watch.SessionOptions{
		PollInterval:   cfg.PollInterval,
		ReconnectDelay: cfg.ReconnectDelay,
		DedupCapacity:  cfg.DedupCapacity,
		Logger:         logger,
	})

	fmt.Println(headerStyle.Render("opsdesk 通知を監視しています: " + cfg.BaseURL))
	return session.Run(ctx)
}

// resolveToken はフラグ・環境変数のトークンを優先し、無ければキーリングから読む。
func resolveToken(token string, logger zerolog.Logger) (string, error) {
	if token != "" {
		return token, nil
	}
	store, err := credential.Open()
	if err != nil {
		return "", err
	}
	token, err = store.Token()
	if errors.Is(err, credential.ErrNoToken) {
		return "", errors.New("アクセストークンがありません。--token で指定するか --save-token で保存してください")
	}
	if err != nil {
		return "", err
	}
	logger.Debug().Msg("キーリングのトークンを使用します")
	return token, nil
}

// storeToken はトークンをキーリングに保存する。
func storeToken(store *credential.Store, token string, out io.Writer) error {
	if token == "" {
		return errors.New("--save-token には --token が必要です")
	}
	if err := store.SetToken(token); err != nil {
		return err
	}
	fmt.Fprintln(out, "アクセストークンを保存しました")
	return nil
}

// forgetStoredToken はキーリングのトークンを削除する。
func forgetStoredToken(store *credential.Store, out io.Writer) error {
	if err := store.DeleteToken(); err != nil {
		return err
	}
	fmt.Fprintln(out, "アクセストークンを削除しました")
	return nil
}

// commands は監視せずに1回だけ行う操作。
type commands struct {
	markRead int64
	readAll  bool
	send     string
	message  string
}

func (c commands) requested() bool {
	return c.markRead != 0 || c.readAll || c.send != ""
}

// runCommands は指定された操作を既読、全件既読、作成の順に行う。
func runCommands(ctx context.Context, api *watch.API, c commands, out io.Writer) error {
	if c.markRead != 0 {
		if c.markRead < 0 {
			return fmt.Errorf("--mark-read: 通知IDが不正です: %d", c.markRead)
		}
		if err := api.MarkRead(ctx, c.markRead); err != nil {
			return err
		}
		fmt.Fprintf(out, "通知 %d を既読にしました\n", c.markRead)
	}
	if c.readAll {
		n, err := api.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d 件の通知を既読にしました\n", n)
	}
	if c.send != "" {
		kind, err := event.ParseKind(c.send)
		if err != nil {
			return fmt.Errorf("--send: %w", err)
		}
		if c.message == "" {
			return errors.New("--send には --message が必要です")
		}
		rec, err := api.Send(ctx, kind, c.message)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "通知 %d を作成しました: %s\n", rec.ID, rec.Message)
	}
	return nil
}

// updatePreferences は通知設定を更新する。
func updatePreferences(p *prefs.Preferences, sound, desktop string) error {
	if sound != "" {
		on, err := parseSwitch(sound)
		if err != nil {
			return fmt.Errorf("--set-sound: %w", err)
		}
		if err := p.SetSoundEnabled(on); err != nil {
			return err
		}
	}
	if desktop != "" {
		on, err := parseSwitch(desktop)
		if err != nil {
			return fmt.Errorf("--set-desktop: %w", err)
		}
		if err := p.SetDesktopEnabled(on); err != nil {
			return err
		}
	}
	fmt.Printf("通知音: %s / デスクトップ通知: %s\n", onOff(p.SoundEnabled()), onOff(p.DesktopEnabled()))
	return nil
}

// parseSwitch は on/off または真偽値の文字列を解釈する。
func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("on または off を指定してください: %q", s)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
