package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/internal/config"
	"github.com/nao1215/opsdesk/pkg/event"
	"github.com/nao1215/opsdesk/pkg/middleware"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg *config.ServerConfig
	// store は通知ログ。
	store *Store
	// hub は接続中ストリームへのファンアウト。
	hub *Hub
	// notifier は作成と配信をまとめて行う。
	notifier *Notifier
	// limiter はJSON APIのレート制限。
	limiter *middleware.RateLimiter
	// logger は構造化ロガー。
	logger zerolog.Logger
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg *config.ServerConfig, logger zerolog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("通知ストアの初期化に失敗: %w", err)
	}
	return newServer(store, cfg, logger), nil
}

// newServer は既存のStoreを使ってサーバーを組み立てる。
func newServer(store *Store, cfg *config.ServerConfig, logger zerolog.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	hub := NewHub()
	s := &Server{
		router:   router,
		cfg:      cfg,
		store:    store,
		hub:      hub,
		notifier: NewNotifier(store, hub, logger),
		limiter:  middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateBurst),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Notifier は業務ロジック向けの通知発行口を返す。
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve は指定リスナーでHTTPサーバーを起動する。
// ctxがキャンセルされると全ストリームを閉じてからグレースフルシャットダウンする。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("通知サービスを起動しました")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	// ストリームのハンドラーは購読が閉じるまで戻らないため、先にHubを閉じる。
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("通知サービスを停止しました")
	return nil
}

// Close はストリームを閉じ、データベース接続を解放する。
func (s *Server) Close() error {
	s.hub.Close()
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		notifications := api.Group("/notifications")
		{
			// ストリームは長時間接続なのでレート制限の対象外
			notifications.GET("/stream", s.handleStream())

			limited := notifications.Group("", s.limiter.Middleware())
			// 通知一覧取得
			limited.GET("", s.handleList())
			// 未読通知一覧取得
			limited.GET("/unread", s.handleListUnread())
			// 未読件数取得
			limited.GET("/unread/count", s.handleUnreadCount())
			// 通知を既読にする
			limited.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			limited.PUT("/read-all", s.handleMarkAllAsRead())
		}

		// 通知作成（内部API - 業務ロジックから呼び出される）
		internal := api.Group("/internal", s.limiter.Middleware())
		{
			internal.POST("/notifications", s.handleCreate())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "notification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "notification",
			"subscribers": s.hub.Len(),
		})
	})
}

// handleList は通知一覧を挿入順で返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.store.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("通知一覧取得エラー")
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

// handleListUnread は未読通知一覧を挿入順で返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.store.ListUnread(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("未読通知一覧取得エラー")
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

// handleUnreadCount は未読件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.UnreadCount(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("未読件数取得エラー")
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}

		if err := s.store.MarkRead(c.Request.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			s.logger.Error().Err(err).Int64("id", id).Msg("通知既読処理エラー")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.MarkAllRead(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			s.logger.Error().Err(err).Msg("全通知既読処理エラー")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "updated": n})
	}
}

// createRequest は通知作成リクエストのJSON構造。
type createRequest struct {
	// Type は通知の種別。
	Type string `json:"type" binding:"required"`
	// Message は通知メッセージ。
	Message string `json:"message" binding:"required"`
}

// handleCreate は通知を作成し、接続中のストリームへ配信するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		kind, err := event.ParseKind(req.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("通知種別が不正です: %s", req.Type)})
			return
		}

		rec, err := s.notifier.Notify(c.Request.Context(), kind, req.Message)
		if err != nil {
			if errors.Is(err, ErrEmptyMessage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "通知メッセージが空です"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			s.logger.Error().Err(err).Msg("通知作成エラー")
			return
		}

		c.JSON(http.StatusCreated, rec)
	}
}
