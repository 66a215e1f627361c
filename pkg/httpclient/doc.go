// Package httpclient は通知サービスのHTTP APIを呼び出すクライアントを提供する。
//
// 未読一覧のポーリングに使うJSONリクエストと、
// プッシュチャネル（Server-Sent Events）の長時間接続を扱う。
package httpclient
