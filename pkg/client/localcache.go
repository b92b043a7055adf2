package client

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nao1215/notifyhub/pkg/migration"
	"github.com/nao1215/notifyhub/pkg/notice"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// AnonymousScope は受信者が特定できない場合のスコープ。
const AnonymousScope = "anonymous"

// Scope は受信者IDからキャッシュのスコープを決める。
func Scope(recipientID string) string {
	if recipientID == "" {
		return AnonymousScope
	}
	return recipientID
}

// Snapshot はビューの表示内容。
type Snapshot struct {
	// Records は表示順の通知。
	Records []notice.Record
	// NextCursor は次ページ取得時に使うカーソル。
	NextCursor string
	// HasMore は続きのページがあるかどうか。
	HasMore bool
	// SavedAt は保存日時。保存されていない場合はゼロ値。
	SavedAt time.Time
}

// LocalCache はスコープごとにビューの表示内容を保存するSQLiteストア。
type LocalCache struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenLocalCache はローカルキャッシュを開き、スキーマを適用する。
// pathに ":memory:" を指定するとプロセス内だけのキャッシュになる。
func OpenLocalCache(ctx context.Context, path string) (*LocalCache, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ローカルキャッシュを開けません: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := migration.Run(ctx, db.DB, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ローカルキャッシュのスキーマ適用に失敗: %w", err)
	}
	return &LocalCache{db: db, now: time.Now}, nil
}

// Close はデータベース接続を閉じる。
func (c *LocalCache) Close() error {
	return c.db.Close()
}

type scopeRow struct {
	NextCursor string `db:"next_cursor"`
	HasMore    bool   `db:"has_more"`
	SavedAt    int64  `db:"saved_at"`
}

// Load はスコープの表示内容を読み込む。保存されていない場合は空のSnapshotを返す。
// 解釈できない行は読み飛ばす。
func (c *LocalCache) Load(ctx context.Context, scope string) (Snapshot, error) {
	var meta scopeRow
	err := c.db.GetContext(ctx, &meta,
		"SELECT next_cursor, has_more, saved_at FROM cache_scopes WHERE scope = ?", scope)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{Records: []notice.Record{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("キャッシュの読み込みに失敗 (scope=%s): %w", scope, err)
	}

	var raw []string
	if err := c.db.SelectContext(ctx, &raw,
		"SELECT record FROM cached_notifications WHERE scope = ? ORDER BY position", scope); err != nil {
		return Snapshot{}, fmt.Errorf("キャッシュ済み通知の読み込みに失敗 (scope=%s): %w", scope, err)
	}

	records := make([]notice.Record, 0, len(raw))
	for _, r := range raw {
		var rec notice.Record
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return Snapshot{
		Records:    records,
		NextCursor: meta.NextCursor,
		HasMore:    meta.HasMore,
		SavedAt:    time.Unix(0, meta.SavedAt),
	}, nil
}

// Save はスコープの表示内容を置き換える。
func (c *LocalCache) Save(ctx context.Context, scope string, snap Snapshot) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cache_scopes (scope, next_cursor, has_more, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			next_cursor = excluded.next_cursor,
			has_more = excluded.has_more,
			saved_at = excluded.saved_at`,
		scope, snap.NextCursor, snap.HasMore, c.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("スコープの保存に失敗 (scope=%s): %w", scope, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cached_notifications WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("キャッシュ済み通知の削除に失敗 (scope=%s): %w", scope, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO cached_notifications (scope, position, id, record) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("挿入文の準備に失敗: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snap.Records {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("通知のシリアライズに失敗 (id=%s): %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, scope, i, rec.ID, string(encoded)); err != nil {
			return fmt.Errorf("通知の保存に失敗 (id=%s): %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Clear はスコープの表示内容を削除する。
func (c *LocalCache) Clear(ctx context.Context, scope string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		"DELETE FROM cached_notifications WHERE scope = ?",
		"DELETE FROM cache_scopes WHERE scope = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, scope); err != nil {
			return fmt.Errorf("キャッシュの削除に失敗 (scope=%s): %w", scope, err)
		}
	}
	return tx.Commit()
}
