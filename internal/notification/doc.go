// Package notification は通知サービスの内部実装を提供する。
//
// 業務イベント（タスク・技術者・請求書）から通知レコードを生成してSQLiteに追記し、
// 接続中のすべてのクライアントへServer-Sent Eventsで即時配信する。
// 一覧取得、未読件数、既読管理のHTTP APIもここで提供する。
//
// 構成要素:
//   - Store: 追記専用の通知ログ（既読フラグのみ変化する）
//   - Hub: 接続中ストリームへのノンブロッキングなファンアウト
//   - Notifier: 作成と配信を同じ順序で行う業務ロジック向けの入口
//   - Server: gin によるHTTP APIとストリーム
package notification
