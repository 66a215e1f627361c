package alert

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/opsdesk/pkg/event"
)

// Urgency はデスクトップ通知の緊急度（freedesktop Notificationsのurgencyヒント値）。
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Presentation は通知種別ごとの見せ方。
type Presentation struct {
	// Title はデスクトップ通知とバナーの見出し。
	Title string
	// Icon はfreedesktopのアイコン名。
	Icon string
	// Color はバナーの枠線の色。
	Color lipgloss.Color
	// Urgency はデスクトップ通知の緊急度。
	Urgency Urgency
	// Chime は通知音。
	Chime Chime
}

// Describe は通知種別に対応する見せ方を返す。
// 種別を追加した場合はここに分岐を追加すること（presentation_test.go で全種別を検査している）。
func Describe(kind event.Kind) Presentation {
	switch kind {
	case event.KindTaskCreated:
		return Presentation{Title: "新しいタスク", Icon: "document-new", Color: lipgloss.Color("#3B82F6"), Urgency: UrgencyNormal, Chime: ChimeRising}
	case event.KindTaskAccepted:
		return Presentation{Title: "タスク受諾", Icon: "emblem-ok", Color: lipgloss.Color("#10B981"), Urgency: UrgencyNormal, Chime: ChimeRising}
	case event.KindTaskRejected:
		return Presentation{Title: "タスク却下", Icon: "dialog-warning", Color: lipgloss.Color("#EF4444"), Urgency: UrgencyCritical, Chime: ChimeFalling}
	case event.KindTaskCompleted:
		return Presentation{Title: "タスク完了", Icon: "emblem-default", Color: lipgloss.Color("#22C55E"), Urgency: UrgencyNormal, Chime: ChimeRising}
	case event.KindTechnicianAdded:
		return Presentation{Title: "技術者登録", Icon: "contact-new", Color: lipgloss.Color("#8B5CF6"), Urgency: UrgencyLow, Chime: ChimeRising}
	case event.KindInvoiceCreated:
		return Presentation{Title: "請求書作成", Icon: "x-office-document", Color: lipgloss.Color("#F59E0B"), Urgency: UrgencyNormal, Chime: ChimeRising}
	default:
		return Presentation{Title: "通知", Icon: "dialog-information", Color: lipgloss.Color("#6B7280"), Urgency: UrgencyNormal, Chime: ChimeRising}
	}
}
