package notification

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/nao1215/opsdesk/pkg/migration"
)

// migrationFS は通知サービスのマイグレーションSQLを保持する。
//
//go:embed migrations/*.up.sql
var migrationFS embed.FS

// initSchema は未適用のマイグレーションをデータベースに適用する。
func initSchema(ctx context.Context, db *sqlx.DB, logger zerolog.Logger) error {
	if _, err := migration.Run(ctx, db.DB, migrationFS, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
