package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	notificationdb "github.com/nao1215/notifyhub/internal/notification/db"
	"github.com/nao1215/notifyhub/pkg/notice"
)

// DefaultPageLimit は一覧取得1回あたりの最大件数の既定値。
const DefaultPageLimit = 25

// Ledger は受信者ごとの通知レコードを保持する台帳。
// 既読状態の唯一の情報源であり、各操作は1つの文またはトランザクションで完結する。
type Ledger struct {
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// prefs は作成時に参照する通知設定ストア。
	prefs *PreferenceStore
	// maxLimit は一覧取得1回あたりの最大件数。
	maxLimit int
	// now は作成日時の取得に使う時計。
	now func() time.Time
	// newID は通知IDを生成する関数。
	newID func() string
}

// LedgerOption はLedgerの生成オプション。
type LedgerOption func(*Ledger)

// WithClock は作成日時に使う時計を差し替える。
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator は通知IDの生成関数を差し替える。
func WithIDGenerator(newID func() string) LedgerOption {
	return func(l *Ledger) { l.newID = newID }
}

// WithMaxLimit は一覧取得1回あたりの最大件数を設定する。
func WithMaxLimit(limit int) LedgerOption {
	return func(l *Ledger) {
		if limit > 0 {
			l.maxLimit = limit
		}
	}
}

// NewLedger は新しい通知台帳を生成する。
func NewLedger(db *sql.DB, prefs *PreferenceStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		queries:  notificationdb.New(db),
		prefs:    prefs,
		maxLimit: DefaultPageLimit,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxLimit は一覧取得1回あたりの最大件数を返す。
func (l *Ledger) MaxLimit() int {
	return l.maxLimit
}

// Create は通知を作成する。
// 受信者の設定で種別が無効化されている場合は何も作成せず (nil, nil) を返す。
// 設定の取得に失敗した場合も作成しない（ログにのみ記録する）。
// デプロイメントの語彙にない種別はErrValidationになる。
func (l *Ledger) Create(ctx context.Context, recipientID, notificationType string, data notice.Payload, link string) (*notice.Record, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: 受信者IDが必要です", ErrValidation)
	}
	if notificationType == "" {
		return nil, fmt.Errorf("%w: 通知種別が必要です", ErrValidation)
	}
	// 語彙外の種別は受信者が無効化できないため作成しない
	if !l.prefs.isKnown(notificationType) {
		return nil, fmt.Errorf("%w: 未知の通知種別です: %s", ErrValidation, notificationType)
	}

	prefs, err := l.prefs.Get(ctx, recipientID)
	if err != nil {
		log.Printf("[Ledger] 通知設定の取得に失敗したため作成しません (user=%s, type=%s): %v", recipientID, notificationType, err)
		notificationsSuppressed.WithLabelValues(notificationType, "lookup_failed").Inc()
		return nil, nil
	}
	if !prefs.Allows(notificationType) {
		notificationsSuppressed.WithLabelValues(notificationType, "disabled").Inc()
		return nil, nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: ペイロードのシリアライズに失敗: %w", ErrValidation, err)
	}

	row, err := l.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		ID:        l.newID(),
		UserID:    recipientID,
		Type:      notificationType,
		Data:      string(encoded),
		Link:      link,
		CreatedAt: l.now().UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: 通知の作成に失敗: %w", ErrTransientStorage, err)
	}

	notificationsCreated.WithLabelValues(notificationType).Inc()
	rec := toRecord(row)
	return &rec, nil
}

// Get は受信者が所有する通知を1件返す。他ユーザーの通知はErrNotFoundになる。
func (l *Ledger) Get(ctx context.Context, recipientID, id string) (notice.Record, error) {
	if recipientID == "" {
		return notice.Record{}, ErrUnauthorized
	}

	row, err := l.queries.GetNotification(ctx, notificationdb.GetNotificationParams{
		ID:     id,
		UserID: recipientID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return notice.Record{}, ErrNotFound
	}
	if err != nil {
		return notice.Record{}, fmt.Errorf("%w: 通知の取得に失敗: %w", ErrTransientStorage, err)
	}
	return toRecord(row), nil
}

// MarkRead は受信者が所有する通知を既読にする。
// 既読済みの通知に対しても成功し、他ユーザーの通知は存在しないものとして扱う。
func (l *Ledger) MarkRead(ctx context.Context, recipientID, id string) (notice.Record, error) {
	if recipientID == "" {
		return notice.Record{}, ErrUnauthorized
	}
	if id == "" {
		return notice.Record{}, ErrNotFound
	}

	row, err := l.queries.MarkNotificationRead(ctx, notificationdb.MarkNotificationReadParams{
		ID:     id,
		UserID: recipientID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return notice.Record{}, ErrNotFound
	}
	if err != nil {
		return notice.Record{}, fmt.Errorf("%w: 通知の既読処理に失敗: %w", ErrTransientStorage, err)
	}
	return toRecord(row), nil
}

// MarkAllRead は受信者の未読通知をすべて既読にし、遷移した件数を返す。
func (l *Ledger) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, ErrUnauthorized
	}

	n, err := l.queries.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: 全通知の既読処理に失敗: %w", ErrTransientStorage, err)
	}
	notificationsMarkedRead.Add(float64(n))
	return n, nil
}

// DeleteAllRead は受信者の既読通知をすべて削除し、削除した件数を返す。
// 条件は1文のDELETEで評価されるため、未読の通知が削除されることはない。
func (l *Ledger) DeleteAllRead(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, ErrUnauthorized
	}

	n, err := l.queries.DeleteReadNotifications(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: 既読通知の削除に失敗: %w", ErrTransientStorage, err)
	}
	notificationsDeleted.Add(float64(n))
	return n, nil
}

// UnreadCount は受信者の未読通知の件数を返す。
func (l *Ledger) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, ErrUnauthorized
	}

	n, err := l.queries.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: 未読件数の取得に失敗: %w", ErrTransientStorage, err)
	}
	return n, nil
}

// Page は一覧取得の結果。
type Page struct {
	// Records は (created_at DESC, id DESC) 順の通知。
	Records []notice.Record
	// Next は末尾のレコードを指すカーソル。空ページではnil。
	Next *Cursor
	// HasMore は返却件数がlimitと一致したかどうか。先読みはしない。
	HasMore bool
}

// List は受信者の通知を新しい順に最大limit件返す。
// beforeを指定した場合はその位置より後ろ（古い側）のレコードだけを返す。
// limitは正の整数でなければならず、最大件数を超える値は切り詰める。
func (l *Ledger) List(ctx context.Context, recipientID string, limit int, before *Cursor) (Page, error) {
	if recipientID == "" {
		return Page{}, ErrUnauthorized
	}
	if limit <= 0 {
		return Page{}, fmt.Errorf("%w: limitは正の整数である必要があります", ErrValidation)
	}
	limit = min(limit, l.maxLimit)

	var (
		rows []notificationdb.Notification
		err  error
	)
	switch {
	case before == nil:
		rows, err = l.queries.ListNotifications(ctx, notificationdb.ListNotificationsParams{
			UserID: recipientID,
			Limit:  int64(limit),
		})
	case before.ID == "":
		rows, err = l.queries.ListNotificationsOlderThan(ctx, notificationdb.ListNotificationsOlderThanParams{
			UserID:    recipientID,
			CreatedAt: before.CreatedAt.UnixNano(),
			Limit:     int64(limit),
		})
	default:
		rows, err = l.queries.ListNotificationsAfterCursor(ctx, notificationdb.ListNotificationsAfterCursorParams{
			UserID:          recipientID,
			CursorCreatedAt: before.CreatedAt.UnixNano(),
			CursorID:        before.ID,
			Limit:           int64(limit),
		})
	}
	if err != nil {
		return Page{}, fmt.Errorf("%w: 通知一覧の取得に失敗: %w", ErrTransientStorage, err)
	}

	page := Page{
		Records: make([]notice.Record, 0, len(rows)),
		HasMore: len(rows) == limit,
	}
	for _, row := range rows {
		page.Records = append(page.Records, toRecord(row))
	}
	if n := len(page.Records); n > 0 {
		last := page.Records[n-1]
		page.Next = cursorOf(last.CreatedAt, last.ID)
	}
	return page, nil
}

// toRecord はDB行を通知レコードに変換する。
// 保存済みのペイロードが解釈できない場合は生の文字列をテキストとして扱う。
func toRecord(n notificationdb.Notification) notice.Record {
	var data notice.Payload
	if err := json.Unmarshal([]byte(n.Data), &data); err != nil {
		data = notice.Text(n.Data)
	}
	return notice.Record{
		ID:          n.ID,
		RecipientID: n.UserID,
		Type:        n.Type,
		Data:        data,
		Read:        n.IsRead != 0,
		Link:        n.Link,
		CreatedAt:   time.Unix(0, n.CreatedAt).UTC(),
	}
}
