package notification

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"
	"time"

	notificationdb "github.com/nao1215/notifyhub/internal/notification/db"
	"github.com/nao1215/notifyhub/pkg/notice"
	"github.com/patrickmn/go-cache"
)

// PreferenceStore は通知種別ごとの配信設定を永続化する。
// 設定は作成時のゲートにのみ使われるため、短いTTLでキャッシュする。
type PreferenceStore struct {
	// db はトランザクション開始に使うSQLite接続。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// types はデプロイメントで有効な通知種別の語彙。
	types []string
	// known はtypesの検索用セット。空の場合は任意の種別を受け付ける。
	known map[string]struct{}
	// cache はユーザーIDをキーにした設定キャッシュ。TTLが0の場合はnil。
	cache *cache.Cache
	// now は更新日時の取得に使う時計。
	now func() time.Time

	// mu はversionsとキャッシュへの書き込みを保護する。
	mu sync.Mutex
	// versions はユーザーごとの更新回数。読み込み中に更新された設定をキャッシュしないために使う。
	versions map[string]uint64
}

// NewPreferenceStore は新しい通知設定ストアを生成する。
// ttlが0以下の場合はキャッシュを使わない。
func NewPreferenceStore(db *sql.DB, types []string, ttl time.Duration) *PreferenceStore {
	known := make(map[string]struct{}, len(types))
	for _, t := range types {
		known[t] = struct{}{}
	}

	p := &PreferenceStore{
		db:       db,
		queries:  notificationdb.New(db),
		types:    types,
		known:    known,
		now:      time.Now,
		versions: make(map[string]uint64),
	}
	if ttl > 0 {
		p.cache = cache.New(ttl, 2*ttl)
	}
	return p
}

// Get はユーザーの通知設定を返す。
// 保存済みの設定がない種別は配信有効（true）として埋める。
func (p *PreferenceStore) Get(ctx context.Context, userID string) (notice.Preferences, error) {
	if userID == "" {
		return notice.Preferences{}, ErrUnauthorized
	}

	if p.cache != nil {
		if cached, ok := p.cache.Get(userID); ok {
			return clonePreferences(cached.(notice.Preferences)), nil
		}
	}

	version := p.version(userID)
	rows, err := p.queries.ListPreferences(ctx, userID)
	if err != nil {
		return notice.Preferences{}, fmt.Errorf("%w: 通知設定の取得に失敗: %w", ErrTransientStorage, err)
	}

	prefs := p.build(userID, rows)
	p.cacheIfCurrent(userID, version, prefs)
	return prefs, nil
}

// Update は部分的な設定を既存の設定にマージして保存し、マージ後の設定を返す。
// 種別ごとに1行をupsertするため、同時更新は種別単位で後勝ちになる。
func (p *PreferenceStore) Update(ctx context.Context, userID string, partial map[string]bool) (notice.Preferences, error) {
	if userID == "" {
		return notice.Preferences{}, ErrUnauthorized
	}
	if len(partial) == 0 {
		return notice.Preferences{}, fmt.Errorf("%w: 更新する設定がありません", ErrValidation)
	}
	for t := range partial {
		if !p.isKnown(t) {
			return notice.Preferences{}, fmt.Errorf("%w: 未知の通知種別です: %s", ErrValidation, t)
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return notice.Preferences{}, fmt.Errorf("%w: トランザクション開始に失敗: %w", ErrTransientStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	qtx := p.queries.WithTx(tx)
	updatedAt := p.now().UnixNano()
	for t, enabled := range partial {
		if err := qtx.UpsertPreference(ctx, notificationdb.UpsertPreferenceParams{
			UserID:    userID,
			Type:      t,
			Enabled:   boolToInt(enabled),
			UpdatedAt: updatedAt,
		}); err != nil {
			return notice.Preferences{}, fmt.Errorf("%w: 通知設定の保存に失敗: %w", ErrTransientStorage, err)
		}
	}

	rows, err := qtx.ListPreferences(ctx, userID)
	if err != nil {
		return notice.Preferences{}, fmt.Errorf("%w: 通知設定の再取得に失敗: %w", ErrTransientStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return notice.Preferences{}, fmt.Errorf("%w: コミットに失敗: %w", ErrTransientStorage, err)
	}

	p.invalidate(userID)
	return p.build(userID, rows), nil
}

// version はユーザーの設定の現在の更新回数を返す。
func (p *PreferenceStore) version(userID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.versions[userID]
}

// cacheIfCurrent は読み込み開始後に更新がなかった場合だけ設定をキャッシュする。
func (p *PreferenceStore) cacheIfCurrent(userID string, version uint64, prefs notice.Preferences) {
	if p.cache == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.versions[userID] != version {
		return
	}
	p.cache.SetDefault(userID, clonePreferences(prefs))
}

// invalidate は更新回数を進めてキャッシュを破棄する。
func (p *PreferenceStore) invalidate(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions[userID]++
	if p.cache != nil {
		p.cache.Delete(userID)
	}
}

// Types はデプロイメントで有効な通知種別を返す。
func (p *PreferenceStore) Types() []string {
	return p.types
}

func (p *PreferenceStore) isKnown(notificationType string) bool {
	if len(p.known) == 0 {
		return notificationType != ""
	}
	_, ok := p.known[notificationType]
	return ok
}

// build は全種別を有効にしたデフォルト値に保存済みの行を重ねる。
func (p *PreferenceStore) build(userID string, rows []notificationdb.NotificationPreference) notice.Preferences {
	settings := make(map[string]bool, len(p.types)+len(rows))
	for _, t := range p.types {
		settings[t] = true
	}
	for _, r := range rows {
		settings[r.Type] = r.Enabled != 0
	}
	return notice.Preferences{UserID: userID, Settings: settings}
}

func clonePreferences(p notice.Preferences) notice.Preferences {
	return notice.Preferences{UserID: p.UserID, Settings: maps.Clone(p.Settings)}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
