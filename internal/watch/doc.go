// Package watch はクライアント側で通知サービスを監視するセッションを提供する。
//
// Session はプッシュチャネルを管理する Supervisor と、未読一覧を定期取得する
// Reconciler を同時に動かし、どちらかが新着と判断した通知を alert.Dispatcher に渡す。
// セッション状態の更新はすべて1本のイベントループ上で行う。
package watch
