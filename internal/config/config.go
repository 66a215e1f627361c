// Package config は通知サービスとクライアントの設定を読み込む。
//
// 優先順位はコマンドラインフラグ、環境変数（OPSDESK_ 接頭辞）、設定ファイル（YAML）、
// デフォルト値の順。カレントディレクトリに .env があれば環境変数として読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix は環境変数の接頭辞。
const envPrefix = "OPSDESK"

// DefaultJWTSecret は開発用のJWTシークレット。本番では必ず上書きする。
const DefaultJWTSecret = "dev-secret-key"

// ServerConfig は通知サービス（サーバー側）の設定。
type ServerConfig struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `mapstructure:"database_path"`
	// JWTSecret はセッショントークン検証用の秘密鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// LogLevel はログレベル。
	LogLevel string `mapstructure:"log_level"`
	// LogFormat はログ形式（console または json）。
	LogFormat string `mapstructure:"log_format"`
	// RateLimitPerSec はクライアントIPごとの1秒あたり許可リクエスト数。0以下で無制限。
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec"`
	// RateBurst はレート制限のバースト数。
	RateBurst int `mapstructure:"rate_burst"`
	// StreamBuffer はストリーム購読者ごとの送信バッファ長。
	StreamBuffer int `mapstructure:"stream_buffer"`
	// HeartbeatInterval はストリームのキープアライブ送信間隔。
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// ClientConfig は通知クライアント（セッション側）の設定。
type ClientConfig struct {
	// BaseURL は通知サービスのベースURL。
	BaseURL string `mapstructure:"base_url"`
	// Token はBearerトークン。空の場合はキーリングから読み込む。
	Token string `mapstructure:"token"`
	// PreferencesPath は通知設定ファイルのパス。
	PreferencesPath string `mapstructure:"preferences_path"`
	// PollInterval は未読一覧のポーリング間隔。
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ReconnectDelay はプッシュチャネル切断後の再接続までの待ち時間。
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// DispatchDelay は新着検出から通知発火までの待ち時間。
	DispatchDelay time.Duration `mapstructure:"dispatch_delay"`
	// BannerDuration はアプリ内バナーの表示時間。
	BannerDuration time.Duration `mapstructure:"banner_duration"`
	// DedupCapacity は通知済みIDを記憶する件数。0の場合はIDによる重複排除を行わない。
	DedupCapacity int `mapstructure:"dedup_capacity"`
	// LogLevel はログレベル。
	LogLevel string `mapstructure:"log_level"`
	// LogFormat はログ形式（console または json）。
	LogFormat string `mapstructure:"log_format"`
}

// serverDefaults はサーバー設定のデフォルト値。
var serverDefaults = map[string]any{
	"port":               "8086",
	"database_path":      "/data/notification.db",
	"jwt_secret":         DefaultJWTSecret,
	"allowed_origins":    []string{"http://localhost:3000"},
	"log_level":          "info",
	"log_format":         "console",
	"rate_limit_per_sec": 20.0,
	"rate_burst":         40,
	"stream_buffer":      64,
	"heartbeat_interval": 15 * time.Second,
}

// clientDefaults はクライアント設定のデフォルト値。
var clientDefaults = map[string]any{
	"base_url":         "http://localhost:8086",
	"token":            "",
	"preferences_path": defaultPreferencesPath(),
	"poll_interval":    2 * time.Second,
	"reconnect_delay":  3 * time.Second,
	"dispatch_delay":   100 * time.Millisecond,
	"banner_duration":  5 * time.Second,
	"dedup_capacity":   0,
	"log_level":        "info",
	"log_format":       "console",
}

// defaultPreferencesPath は通知設定ファイルの既定パスを返す。
// Linuxでは $XDG_CONFIG_HOME/opsdesk/preferences.yaml（未設定なら ~/.config 配下）になる。
func defaultPreferencesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "preferences.yaml"
	}
	return filepath.Join(dir, "opsdesk", "preferences.yaml")
}

// LoadServer はサーバー設定を読み込む。
// flags にはサーバー用のフラグが未定義であること。フラグを定義してからargsを解析する。
func LoadServer(flags *pflag.FlagSet, args []string) (*ServerConfig, error) {
	flags.String("port", "", "HTTPサーバーのリッスンポート")
	flags.String("database-path", "", "SQLiteデータベースファイルのパス")
	flags.String("log-level", "", "ログレベル")

	v, err := load(flags, args, serverDefaults, map[string]string{
		"port":          "port",
		"database_path": "database-path",
		"log_level":     "log-level",
	})
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("サーバー設定の解析に失敗: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient はクライアント設定を読み込む。
func LoadClient(flags *pflag.FlagSet, args []string) (*ClientConfig, error) {
	flags.String("base-url", "", "通知サービスのベースURL")
	flags.String("token", "", "Bearerトークン（未指定時はキーリングを参照）")
	flags.String("preferences", "", "通知設定ファイルのパス")
	flags.Int("dedup", -1, "通知済みIDの記憶件数（0で無効）")
	flags.String("log-level", "", "ログレベル")

	v, err := load(flags, args, clientDefaults, map[string]string{
		"base_url":         "base-url",
		"token":            "token",
		"preferences_path": "preferences",
		"dedup_capacity":   "dedup",
		"log_level":        "log-level",
	})
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("クライアント設定の解析に失敗: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load は .env、設定ファイル、環境変数、フラグを統合したviperインスタンスを返す。
// bindings は設定キーからフラグ名への対応。値が指定されたフラグだけが設定を上書きする。
func load(flags *pflag.FlagSet, args []string, defaults map[string]any, bindings map[string]string) (*viper.Viper, error) {
	if flags.Lookup("config") == nil {
		flags.String("config", "", "設定ファイル（YAML）のパス")
	}
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("フラグの解析に失敗: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, flag := range bindings {
		f := flags.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("フラグ %s のバインドに失敗: %w", flag, err)
		}
	}

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}
	return v, nil
}

// validate はサーバー設定の値を検証する。
func (c *ServerConfig) validate() error {
	if c.Port == "" {
		return errors.New("portが空です")
	}
	if c.DatabasePath == "" {
		return errors.New("database_pathが空です")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secretが空です")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_intervalが不正です: %v", c.HeartbeatInterval)
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("stream_bufferが不正です: %d", c.StreamBuffer)
	}
	return nil
}

// validate はクライアント設定の値を検証する。
func (c *ClientConfig) validate() error {
	if c.BaseURL == "" {
		return errors.New("base_urlが空です")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_intervalが不正です: %v", c.PollInterval)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delayが不正です: %v", c.ReconnectDelay)
	}
	if c.DispatchDelay < 0 {
		return fmt.Errorf("dispatch_delayが不正です: %v", c.DispatchDelay)
	}
	if c.DedupCapacity < 0 {
		return fmt.Errorf("dedup_capacityが不正です: %d", c.DedupCapacity)
	}
	return nil
}
