package notification

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/nao1215/notifyhub/pkg/migration"
	_ "modernc.org/sqlite"
)

// マイグレーション定義。sqlc.yaml のschemaとしても参照される。
//
//go:embed migrations
var migrationsFS embed.FS

// sqliteParams はファイルDBに付与する接続パラメータ。
// 書き込みトランザクションは開始時に書き込みロックを取る。
const sqliteParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// openDB はSQLiteデータベースを開き、マイグレーションを適用する。
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(path, "?") && path != ":memory:" {
		dsn = path + "?" + sqliteParams
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のDBになる
		sqlDB.SetMaxOpenConns(1)
	}

	if err := initSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return sqlDB, nil
}

// initSchema はマイグレーションを実行して通知台帳と通知設定のスキーマを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	return migration.Run(ctx, db, migrationsFS, "migrations")
}
