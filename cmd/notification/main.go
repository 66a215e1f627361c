// 通知サービスのエントリポイント。
// タスク・技術者・請求書の業務イベントから通知を生成・保存し、
// 接続中のコンソールへServer-Sent Eventsで即時配信する。
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/nao1215/opsdesk/internal/config"
	"github.com/nao1215/opsdesk/internal/notification"
	"github.com/nao1215/opsdesk/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "通知サービスの実行に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer(pflag.NewFlagSet("notification", pflag.ExitOnError), os.Args[1:])
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn().Msg("開発用のJWTシークレットを使用しています。本番では OPSDESK_JWT_SECRET を設定してください")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Error().Err(err).Msg("データベースのクローズに失敗")
		}
	}()

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("ポート %s のリッスンに失敗: %w", cfg.Port, err)
	}

	notifyReady(logger)
	go watchdog(ctx, logger)

	err = server.Serve(ctx, ln)
	if _, nerr := daemon.SdNotify(false, daemon.SdNotifyStopping); nerr != nil {
		logger.Debug().Err(nerr).Msg("systemdへの停止通知に失敗")
	}
	return err
}

// notifyReady はsystemdに起動完了を通知する。systemd配下でなければ何もしない。
func notifyReady(logger zerolog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn().Err(err).Msg("systemdへの起動通知に失敗")
		return
	}
	if sent {
		logger.Debug().Msg("systemdに起動完了を通知しました")
	}
}

// watchdog はsystemdのウォッチドッグが有効な場合に生存通知を送り続ける。
func watchdog(ctx context.Context, logger zerolog.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn().Err(err).Msg("ウォッチドッグ通知に失敗")
			}
		}
	}
}
