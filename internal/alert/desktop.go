package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nao1215/opsdesk/internal/prefs"
)

// ErrPermissionDenied はデスクトップ通知が許可されていない場合のエラー。
var ErrPermissionDenied = errors.New("デスクトップ通知が許可されていません")

// DefaultDesktopExpiry はデスクトップ通知が自動で閉じるまでの時間。
const DefaultDesktopExpiry = 5 * time.Second

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = "org.freedesktop.Notifications.Notify"
	appName             = "opsdesk"
)

// Notice は表示する通知の内容。
type Notice struct {
	// ID は元の通知レコードのID。
	ID int64
	// Presentation は種別ごとの見せ方。
	Presentation Presentation
	// Message は本文。
	Message string
}

// Desktop はOSのデスクトップ通知。
type Desktop interface {
	// Permission は現在の許可状態を返す。
	Permission() prefs.Permission
	// RequestPermission は利用者に許可を求め、結果を返す。
	RequestPermission(ctx context.Context) (prefs.Permission, error)
	// Show は通知を表示する。
	Show(ctx context.Context, n Notice) error
}

// Prompter は利用者に可否を尋ねる。
type Prompter interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// notifyCaller はD-Busのメソッド呼び出し。dbus.BusObject が満たす。
type notifyCaller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// DBusDesktop はfreedesktop NotificationsのD-Bus APIでデスクトップ通知を表示する。
// 許可状態は設定に保存し、未確認の場合だけ Prompter で利用者に尋ねる。
type DBusDesktop struct {
	prefs    *prefs.Preferences
	prompter Prompter
	expiry   time.Duration

	mu     sync.Mutex
	conn   *dbus.Conn
	caller notifyCaller
}

// NewDBusDesktop は新しいDBusDesktopを生成する。セッションバスへは最初の表示時に接続する。
func NewDBusDesktop(p *prefs.Preferences, prompter Prompter, expiry time.Duration) *DBusDesktop {
	if expiry <= 0 {
		expiry = DefaultDesktopExpiry
	}
	return &DBusDesktop{prefs: p, prompter: prompter, expiry: expiry}
}

// Permission は設定に保存された許可状態を返す。
func (d *DBusDesktop) Permission() prefs.Permission {
	return d.prefs.Permission()
}

// RequestPermission は利用者に許可を求め、結果を設定に保存する。
// すでに許可または拒否が決まっている場合は尋ねない。
func (d *DBusDesktop) RequestPermission(ctx context.Context) (prefs.Permission, error) {
	if perm := d.prefs.Permission(); perm != prefs.PermissionDefault {
		return perm, nil
	}
	if d.prompter == nil {
		return prefs.PermissionDefault, nil
	}

	ok, err := d.prompter.Confirm(ctx,
		"デスクトップ通知を許可しますか？",
		"新しいタスクや請求書の通知をデスクトップに表示します。",
	)
	if err != nil {
		return prefs.PermissionDefault, fmt.Errorf("許可の確認に失敗: %w", err)
	}

	perm := prefs.PermissionDenied
	if ok {
		perm = prefs.PermissionGranted
	}
	if err := d.prefs.SetPermission(perm); err != nil {
		return perm, fmt.Errorf("許可状態の保存に失敗: %w", err)
	}
	return perm, nil
}

// Show はデスクトップ通知を表示する。許可されていない場合は ErrPermissionDenied を返す。
func (d *DBusDesktop) Show(ctx context.Context, n Notice) error {
	if d.prefs.Permission() != prefs.PermissionGranted {
		return ErrPermissionDenied
	}

	caller, err := d.notifier()
	if err != nil {
		return err
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Presentation.Urgency)),
	}
	call := caller.CallWithContext(ctx, notificationsNotify, 0,
		appName,
		uint32(0),
		n.Presentation.Icon,
		n.Presentation.Title,
		n.Message,
		[]string{},
		hints,
		int32(d.expiry.Milliseconds()),
	)
	if call.Err != nil {
		return fmt.Errorf("デスクトップ通知の送信に失敗: %w", call.Err)
	}
	return nil
}

// Close はセッションバスの接続を閉じる。
func (d *DBusDesktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.caller = nil
	return err
}

// notifier はセッションバス上の通知デーモンを返す。未接続なら接続する。
func (d *DBusDesktop) notifier() (notifyCaller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.caller != nil {
		return d.caller, nil
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("セッションバスへの接続に失敗: %w", err)
	}
	d.conn = conn
	d.caller = conn.Object(notificationsDest, notificationsPath)
	return d.caller, nil
}
