// Package prefs はクライアントの通知設定を扱う。
//
// 設定はテキストのキーと値として永続化される。真偽値は "true"/"false" の文字列で保存し、
// 値が無い、または解釈できない場合は有効（true）として扱う。
// Preferences は読み出しのたびに保存先を参照するため、設定変更は次の通知から反映される。
package prefs

import (
	"strconv"
	"strings"
)

// 永続化キー。
const (
	// KeySoundEnabled は通知音の有効フラグ。
	KeySoundEnabled = "sound_enabled"
	// KeyDesktopEnabled はデスクトップ通知の有効フラグ。
	KeyDesktopEnabled = "desktop_notifications_enabled"
	// KeyPermission はデスクトップ通知の許可状態。
	KeyPermission = "notification_permission"
)

// Permission はデスクトップ通知の許可状態。
type Permission string

const (
	// PermissionDefault はまだ利用者に確認していない状態。
	PermissionDefault Permission = "default"
	// PermissionGranted は許可された状態。
	PermissionGranted Permission = "granted"
	// PermissionDenied は拒否された状態。
	PermissionDenied Permission = "denied"
)

// ParsePermission は文字列を許可状態に変換する。不明な値は PermissionDefault とする。
func ParsePermission(s string) Permission {
	switch p := Permission(strings.TrimSpace(s)); p {
	case PermissionGranted, PermissionDenied:
		return p
	default:
		return PermissionDefault
	}
}

// Store は設定値の保存先。
type Store interface {
	// Get はキーの値を返す。値が無い場合は ok=false を返す。
	Get(key string) (value string, ok bool, err error)
	// Set はキーに値を保存する。
	Set(key, value string) error
}

// Preferences は通知設定への窓口。
type Preferences struct {
	store Store
}

// New は新しいPreferencesを生成する。
func New(store Store) *Preferences {
	return &Preferences{store: store}
}

// SoundEnabled は通知音が有効かどうかを返す。
func (p *Preferences) SoundEnabled() bool {
	return p.flag(KeySoundEnabled)
}

// DesktopEnabled はデスクトップ通知が有効かどうかを返す。
func (p *Preferences) DesktopEnabled() bool {
	return p.flag(KeyDesktopEnabled)
}

// Permission はデスクトップ通知の許可状態を返す。
func (p *Preferences) Permission() Permission {
	v, ok, err := p.store.Get(KeyPermission)
	if err != nil || !ok {
		return PermissionDefault
	}
	return ParsePermission(v)
}

// SetSoundEnabled は通知音の有効フラグを保存する。
func (p *Preferences) SetSoundEnabled(enabled bool) error {
	return p.store.Set(KeySoundEnabled, strconv.FormatBool(enabled))
}

// SetDesktopEnabled はデスクトップ通知の有効フラグを保存する。
func (p *Preferences) SetDesktopEnabled(enabled bool) error {
	return p.store.Set(KeyDesktopEnabled, strconv.FormatBool(enabled))
}

// SetPermission はデスクトップ通知の許可状態を保存する。
func (p *Preferences) SetPermission(perm Permission) error {
	return p.store.Set(KeyPermission, string(perm))
}

// flag はテキストの真偽値を読む。読めない場合は true。
func (p *Preferences) flag(key string) bool {
	v, ok, err := p.store.Get(key)
	if err != nil || !ok {
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return true
	}
	return b
}
