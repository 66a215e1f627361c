package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/opsdesk/pkg/event"
	"github.com/nao1215/opsdesk/pkg/httpclient"
)

// apiRequest はテストサーバーが受け取ったリクエスト。
type apiRequest struct {
	method string
	path   string
	auth   string
	body   map[string]string
}

// newTestAPI は受け取ったリクエストを記録するサーバーとAPIを生成する。
func newTestAPI(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*API, func() []apiRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []apiRequest
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := apiRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		respond(w, r)
	}))
	t.Cleanup(ts.Close)

	api := NewAPI(httpclient.New(ts.URL, httpclient.WithToken("secret-token")))
	return api, func() []apiRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiRequest(nil), reqs...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPI(t *testing.T) {
	t.Parallel()

	t.Run("未読一覧を取得できること", func(t *testing.T) {
		t.Parallel()
		api, requests := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, unreadRecords(1, 2))
		})

		got, err := api.ListUnread(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodGet, reqs[0].method)
		assert.Equal(t, "/api/notifications/unread", reqs[0].path)
		assert.Equal(t, "Bearer secret-token", reqs[0].auth)
	})

	t.Run("指定した通知を既読にできること", func(t *testing.T) {
		t.Parallel()
		api, requests := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		})

		require.NoError(t, api.MarkRead(context.Background(), 42))

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPut, reqs[0].method)
		assert.Equal(t, "/api/notifications/42/read", reqs[0].path)
	})

	t.Run("存在しない通知の既読はエラーになること", func(t *testing.T) {
		t.Parallel()
		api, _ := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})

		assert.Error(t, api.MarkRead(context.Background(), 7))
	})

	t.Run("全件既読で更新件数を返すこと", func(t *testing.T) {
		t.Parallel()
		api, requests := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "updated": 3})
		})

		n, err := api.MarkAllRead(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPut, reqs[0].method)
		assert.Equal(t, "/api/notifications/read-all", reqs[0].path)
	})

	t.Run("通知を作成できること", func(t *testing.T) {
		t.Parallel()
		api, requests := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, event.Record{ID: 9, Type: event.KindTaskCompleted, Message: "完了"})
		})

		rec, err := api.Send(context.Background(), event.KindTaskCompleted, "完了")
		require.NoError(t, err)
		assert.Equal(t, int64(9), rec.ID)

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodPost, reqs[0].method)
		assert.Equal(t, "/api/internal/notifications", reqs[0].path)
		assert.Equal(t, map[string]string{"type": string(event.KindTaskCompleted), "message": "完了"}, reqs[0].body)
	})
}
