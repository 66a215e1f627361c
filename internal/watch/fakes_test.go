package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/opsdesk/internal/alert"
	"github.com/nao1215/opsdesk/pkg/event"
)

// fakeClient は未読一覧とストリームを差し替え可能な通知サービス。
type fakeClient struct {
	mu       sync.Mutex
	unread   []event.Record
	listErr  error
	lists    int
	attempts []time.Time
	openErr  error
	conns    chan *io.PipeWriter
}

func newFakeClient() *fakeClient {
	return &fakeClient{conns: make(chan *io.PipeWriter, 16)}
}

func (c *fakeClient) setUnread(records ...event.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread = records
}

func (c *fakeClient) setListErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

func (c *fakeClient) setOpenErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

func (c *fakeClient) listCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

func (c *fakeClient) attemptTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.attempts...)
}

func (c *fakeClient) ListUnread(context.Context) ([]event.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]event.Record(nil), c.unread...), nil
}

func (c *fakeClient) OpenStream(context.Context) (io.ReadCloser, error) {
	c.mu.Lock()
	c.attempts = append(c.attempts, time.Now())
	err := c.openErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	c.conns <- pw
	return pr, nil
}

// sendNotification はSSE形式で通知イベントを書き込む。
func sendNotification(w io.Writer, data string) error {
	_, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
	return err
}

func recordJSON(id int64) string {
	return fmt.Sprintf(`{"id":%d,"type":"task_created","message":"タスク%d","created_at":"2026-04-01T09:00:00Z","is_read":false}`, id, id)
}

func unreadRecords(ids ...int64) []event.Record {
	records := make([]event.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, event.Record{ID: id, Type: event.KindTaskCreated, Message: fmt.Sprintf("タスク%d", id)})
	}
	return records
}

type dispatchCall struct {
	id     int64
	source alert.Source
}

// fakeDispatcher は発火の呼び出しを記録する。
type fakeDispatcher struct {
	calls chan dispatchCall
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan dispatchCall, 64)}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, rec event.Record, src alert.Source) alert.Outcome {
	d.calls <- dispatchCall{id: rec.ID, source: src}
	return alert.Outcome{}
}

var errUnavailable = errors.New("接続できません")
