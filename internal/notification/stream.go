package notification

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	ginsse "github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/opsdesk/pkg/event"
)

// writeComment はSSEのコメント行を書き込む。クライアントはこれを無視する。
func writeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

// handleStream は新しく作成された通知をServer-Sent Eventsで配信するハンドラ。
//
// 接続前に作成された通知は送らない。各通知は
// "id: <id>" "event: notification" "data: <レコードJSON>" の1イベントとして送る。
// 一定間隔でキープアライブのコメントを送り、中継プロキシによる切断を防ぐ。
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		sub := s.hub.Subscribe(s.cfg.StreamBuffer)
		defer sub.Close()

		logger := s.logger.With().Str("subscription", sub.ID).Str("client", c.ClientIP()).Logger()

		header := c.Writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		if err := writeComment(c.Writer, "connected"); err != nil {
			return
		}
		c.Writer.Flush()
		logger.Debug().Msg("ストリームを開始しました")

		heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				logger.Debug().Msg("クライアントがストリームを切断しました")
				return
			case rec, ok := <-sub.C:
				if !ok {
					if sub.Lagged() {
						logger.Warn().Msg("送信が追いつかないためストリームを切断しました")
					}
					return
				}
				data, err := json.Marshal(rec)
				if err != nil {
					logger.Error().Err(err).Int64("id", rec.ID).Msg("通知のシリアライズに失敗")
					continue
				}
				c.Render(-1, ginsse.Event{
					Id:    strconv.FormatInt(rec.ID, 10),
					Event: event.TypeNotification,
					Data:  string(data),
				})
				c.Writer.Flush()
			case <-heartbeat.C:
				if err := writeComment(c.Writer, "keepalive"); err != nil {
					return
				}
				c.Writer.Flush()
			}
		}
	}
}
