package watch

import (
	"context"
	"fmt"
	"io"

	"github.com/nao1215/opsdesk/pkg/event"
	"github.com/nao1215/opsdesk/pkg/httpclient"
)

// 通知サービスのAPIパス。
const (
	unreadPath  = "/api/notifications/unread"
	streamPath  = "/api/notifications/stream"
	readAllPath = "/api/notifications/read-all"
	createPath  = "/api/internal/notifications"
)

// UnreadSource は未読通知一覧の取得元。
type UnreadSource interface {
	ListUnread(ctx context.Context) ([]event.Record, error)
}

// StreamOpener はプッシュチャネルを開く。
type StreamOpener interface {
	OpenStream(ctx context.Context) (io.ReadCloser, error)
}

// API は通知サービスのHTTP APIクライアント。UnreadSource と StreamOpener を満たす。
type API struct {
	client *httpclient.Client
}

// NewAPI は新しいAPIを生成する。
func NewAPI(client *httpclient.Client) *API {
	return &API{client: client}
}

// ListUnread は未読通知を挿入順で取得する。
func (a *API) ListUnread(ctx context.Context) ([]event.Record, error) {
	var records []event.Record
	if err := a.client.GetJSON(ctx, unreadPath, &records); err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗: %w", err)
	}
	return records, nil
}

// MarkRead は指定した通知を既読にする。
func (a *API) MarkRead(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/notifications/%d/read", id)
	if err := a.client.PutJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("通知 %d の既読処理に失敗: %w", id, err)
	}
	return nil
}

// MarkAllRead は全通知を既読にし、更新した件数を返す。
func (a *API) MarkAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := a.client.PutJSON(ctx, readAllPath, nil, &resp); err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return resp.Updated, nil
}

// Send は通知を作成する。接続中のクライアントにはプッシュでも届く。
func (a *API) Send(ctx context.Context, kind event.Kind, message string) (event.Record, error) {
	req := struct {
		Type    event.Kind `json:"type"`
		Message string     `json:"message"`
	}{Type: kind, Message: message}

	var rec event.Record
	if err := a.client.PostJSON(ctx, createPath, req, &rec); err != nil {
		return event.Record{}, fmt.Errorf("通知の作成に失敗: %w", err)
	}
	return rec, nil
}

// OpenStream は通知ストリームを開く。
func (a *API) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	return a.client.OpenStream(ctx, streamPath)
}
