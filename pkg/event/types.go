// Package event は通知サービスとクライアント間で共有するワイヤー型を提供する。
//
// 通知レコード（Record）、通知の種類（Kind）、およびプッシュチャネルで
// 送受信するメッセージの封筒（Envelope）を定義する。
package event

import (
	"errors"
	"fmt"
	"time"
)

// Kind は通知を発生させた業務イベントの種類を表す。
// 取りうる値は下記の6種類に閉じている。
type Kind string

const (
	// KindTaskCreated はタスクが作成されたことを表す。
	KindTaskCreated Kind = "task_created"
	// KindTaskAccepted は技術者がタスクを受諾したことを表す。
	KindTaskAccepted Kind = "task_accepted"
	// KindTaskRejected は技術者がタスクを却下したことを表す。
	KindTaskRejected Kind = "task_rejected"
	// KindTaskCompleted はタスクが完了したことを表す。
	KindTaskCompleted Kind = "task_completed"
	// KindTechnicianAdded は技術者が登録されたことを表す。
	KindTechnicianAdded Kind = "technician_added"
	// KindInvoiceCreated は請求書が作成されたことを表す。
	KindInvoiceCreated Kind = "invoice_created"
)

// ErrUnknownKind は未定義の通知種別が指定された場合のエラー。
var ErrUnknownKind = errors.New("未定義の通知種別")

// Kinds は定義済みのすべての通知種別を宣言順に返す。
func Kinds() []Kind {
	return []Kind{
		KindTaskCreated,
		KindTaskAccepted,
		KindTaskRejected,
		KindTaskCompleted,
		KindTechnicianAdded,
		KindInvoiceCreated,
	}
}

// Valid は種別が定義済みの値かどうかを返す。
func (k Kind) Valid() bool {
	switch k {
	case KindTaskCreated, KindTaskAccepted, KindTaskRejected,
		KindTaskCompleted, KindTechnicianAdded, KindInvoiceCreated:
		return true
	default:
		return false
	}
}

// ParseKind は文字列を通知種別に変換する。
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Record は通知ログの1件を表す。
// IsRead 以外のフィールドは作成後に変更されない。
type Record struct {
	// ID は通知の一意識別子。挿入順に単調増加し、再利用されない。
	ID int64 `json:"id" db:"id"`
	// Type は通知の種別。
	Type Kind `json:"type" db:"type"`
	// Message は人が読むための通知メッセージ。
	Message string `json:"message" db:"message"`
	// CreatedAt は通知の作成日時。IDの順序に対して単調非減少。
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read" db:"is_read"`
}
