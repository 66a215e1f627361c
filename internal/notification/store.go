package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nao1215/opsdesk/pkg/event"
)

var (
	// ErrNotFound は指定IDの通知が存在しない場合のエラー。
	ErrNotFound = errors.New("通知が見つかりません")
	// ErrEmptyMessage は通知メッセージが空の場合のエラー。
	ErrEmptyMessage = errors.New("通知メッセージが空です")
)

// recordRow はnotificationsテーブルの1行。
type recordRow struct {
	ID        int64  `db:"id"`
	Type      string `db:"type"`
	Message   string `db:"message"`
	CreatedAt int64  `db:"created_at"`
	IsRead    bool   `db:"is_read"`
}

func (r recordRow) toRecord() event.Record {
	return event.Record{
		ID:        r.ID,
		Type:      event.Kind(r.Type),
		Message:   r.Message,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		IsRead:    r.IsRead,
	}
}

func toRecords(rows []recordRow) []event.Record {
	records := make([]event.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records
}

// Store は追記専用の通知ログ。
// レコードは削除されず、既読フラグのみが変化する。一覧はすべて挿入順（id昇順）で返す。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// mu は作成日時の単調性を保つためにCreateを直列化する。
	mu sync.Mutex
	// lastCreated は最後に作成したレコードの作成日時（ナノ秒）。
	lastCreated int64
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// OpenStore はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
// path に ":memory:" を指定するとインメモリデータベースになる。
func OpenStore(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteは書き込みが直列なので接続は1本に絞る。インメモリDBの共有にも必要。
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", pragma, err)
		}
	}

	if err := initSchema(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	if err := db.GetContext(ctx, &s.lastCreated, "SELECT COALESCE(MAX(created_at), 0) FROM notifications"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("最終作成日時の取得に失敗: %w", err)
	}
	return s, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create は通知レコードを追記し、採番されたレコードを返す。
// 作成日時は直前のレコードより前にならないよう補正する。
func (s *Store) Create(ctx context.Context, kind event.Kind, message string) (event.Record, error) {
	if !kind.Valid() {
		return event.Record{}, fmt.Errorf("%w: %q", event.ErrUnknownKind, kind)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return event.Record{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.now().UnixNano()
	if created < s.lastCreated {
		created = s.lastCreated
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (type, message, created_at, is_read) VALUES (?, ?, ?, 0)",
		string(kind), message, created,
	)
	if err != nil {
		return event.Record{}, fmt.Errorf("通知の作成に失敗: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event.Record{}, fmt.Errorf("通知IDの取得に失敗: %w", err)
	}
	s.lastCreated = created

	return recordRow{
		ID:        id,
		Type:      string(kind),
		Message:   message,
		CreatedAt: created,
	}.toRecord(), nil
}

// List はすべての通知を挿入順で返す。
func (s *Store) List(ctx context.Context) ([]event.Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, type, message, created_at, is_read FROM notifications ORDER BY id ASC",
	); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return toRecords(rows), nil
}

// ListUnread は未読の通知を挿入順で返す。
func (s *Store) ListUnread(ctx context.Context) ([]event.Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, type, message, created_at, is_read FROM notifications WHERE is_read = 0 ORDER BY id ASC",
	); err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗: %w", err)
	}
	return toRecords(rows), nil
}

// UnreadCount は未読の通知件数を返す。
func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE is_read = 0"); err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Get は指定IDの通知を返す。存在しない場合は ErrNotFound を返す。
func (s *Store) Get(ctx context.Context, id int64) (event.Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, type, message, created_at, is_read FROM notifications WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Record{}, ErrNotFound
	}
	if err != nil {
		return event.Record{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return row.toRecord(), nil
}

// MarkRead は指定IDの通知を既読にする。既読済みでもエラーにしない。
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead は未読の通知をすべて既読にし、更新件数を返す。
func (s *Store) MarkAllRead(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE is_read = 0")
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return n, nil
}
