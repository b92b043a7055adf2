package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nao1215/notifyhub/pkg/httpclient"
	"github.com/nao1215/notifyhub/pkg/notice"
)

// Backend はビューが利用する通知台帳の操作。
// 受信者は認証情報から決まるため引数に含まない。
type Backend interface {
	// List は通知を新しい順に最大limit件返す。beforeは前ページのnext_cursor。
	List(ctx context.Context, limit int, before string) (notice.Page, error)
	// MarkRead は通知を既読にする。
	MarkRead(ctx context.Context, id string) (notice.Record, error)
	// MarkAllRead は全通知を既読にし、遷移した件数を返す。
	MarkAllRead(ctx context.Context) (int64, error)
	// DeleteAllRead は既読通知をすべて削除し、削除した件数を返す。
	DeleteAllRead(ctx context.Context) (int64, error)
}

// API は通知サービスのHTTP APIを呼び出すBackendの実装。
type API struct {
	http *httpclient.Client
}

var _ Backend = (*API)(nil)

// NewAPI は新しいAPIクライアントを生成する。tokenは通知サービスが発行したBearerトークン。
func NewAPI(baseURL, token string, opts ...httpclient.Option) *API {
	opts = append([]httpclient.Option{httpclient.WithBearerToken(token)}, opts...)
	return &API{http: httpclient.New(baseURL, opts...)}
}

// List は通知一覧を取得する。
func (a *API) List(ctx context.Context, limit int, before string) (notice.Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}
	path := "/api/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page notice.Page
	if err := a.http.GetJSON(ctx, path, &page); err != nil {
		return notice.Page{}, err
	}
	return page, nil
}

// Get は通知を1件取得する。
func (a *API) Get(ctx context.Context, id string) (notice.Record, error) {
	var rec notice.Record
	if err := a.http.GetJSON(ctx, "/api/notifications/"+url.PathEscape(id), &rec); err != nil {
		return notice.Record{}, err
	}
	return rec, nil
}

// MarkRead は通知を既読にする。
func (a *API) MarkRead(ctx context.Context, id string) (notice.Record, error) {
	var rec notice.Record
	if err := a.http.PatchJSON(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil, &rec); err != nil {
		return notice.Record{}, err
	}
	return rec, nil
}

// MarkAllRead は全通知を既読にする。
func (a *API) MarkAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := a.http.PostJSON(ctx, "/api/notifications/mark-all-read", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// DeleteAllRead は既読通知をすべて削除する。
func (a *API) DeleteAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := a.http.DeleteJSON(ctx, "/api/notifications/read", &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// UnreadCount は未読件数を取得する。
func (a *API) UnreadCount(ctx context.Context) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := a.http.GetJSON(ctx, "/api/notifications/unread-count", &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Preferences は通知設定を取得する。
func (a *API) Preferences(ctx context.Context) (notice.Preferences, error) {
	var prefs notice.Preferences
	if err := a.http.GetJSON(ctx, "/api/notification-preferences", &prefs); err != nil {
		return notice.Preferences{}, err
	}
	return prefs, nil
}

// UpdatePreferences は通知設定を部分更新し、マージ後の設定を返す。
func (a *API) UpdatePreferences(ctx context.Context, partial map[string]bool) (notice.Preferences, error) {
	var prefs notice.Preferences
	body := map[string]any{"settings": partial}
	if err := a.http.PatchJSON(ctx, "/api/notification-preferences", body, &prefs); err != nil {
		return notice.Preferences{}, err
	}
	return prefs, nil
}

// CreateRequest は内部APIの通知作成リクエスト。
type CreateRequest struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Type は通知の種別。
	Type string `json:"type"`
	// Data は通知のペイロード。
	Data notice.Payload `json:"data"`
	// Link はクライアントの遷移先。
	Link string `json:"link,omitempty"`
}

// Producer は内部APIを使って通知を作成するクライアント。
type Producer struct {
	http *httpclient.Client
}

// NewProducer は新しいProducerを生成する。internalTokenは通知サービスと共有する内部トークン。
func NewProducer(baseURL, internalToken string, opts ...httpclient.Option) *Producer {
	opts = append([]httpclient.Option{httpclient.WithHeader("X-Internal-Token", internalToken)}, opts...)
	return &Producer{http: httpclient.New(baseURL, opts...)}
}

// Create は通知を作成する。受信者の設定で抑止された場合は (nil, nil) を返す。
func (p *Producer) Create(ctx context.Context, req CreateRequest) (*notice.Record, error) {
	var resp struct {
		Created      bool           `json:"created"`
		Notification *notice.Record `json:"notification"`
	}
	if err := p.http.PostJSON(ctx, "/api/internal/notifications", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Created {
		return nil, nil
	}
	return resp.Notification, nil
}

// IsNotFound はerrが通知の不存在を表すかどうかを返す。
func IsNotFound(err error) bool {
	return httpclient.IsStatus(err, http.StatusNotFound)
}
