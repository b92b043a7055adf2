package notice

import (
	"slices"
	"time"
)

// 標準の通知種別。デプロイメントごとの語彙は設定で上書きできる。
const (
	// TypeGroupInvite はグループへの招待通知。
	TypeGroupInvite = "group-invite"
	// TypeEventUpdate はイベント内容の変更通知。
	TypeEventUpdate = "event-update"
	// TypeReportStatus は通報の処理状況の通知。
	TypeReportStatus = "report-status"
)

// DefaultTypes は標準の通知種別の一覧を返す。
func DefaultTypes() []string {
	return []string{TypeGroupInvite, TypeEventUpdate, TypeReportStatus}
}

// Record は1件の通知レコードを表す。
// 受信者は常に1人で、Readはfalseからtrueにのみ遷移する。
type Record struct {
	// ID は通知の一意識別子（UUID）。
	ID string `json:"id"`
	// RecipientID は通知の受信者のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Type は通知の種別。
	Type string `json:"type"`
	// Data はクライアントが描画するペイロード。
	Data Payload `json:"data"`
	// Read は既読状態。
	Read bool `json:"read"`
	// Link はクライアントの遷移先。省略可能。
	Link string `json:"link,omitempty"`
	// CreatedAt は作成日時。並び順とカーソルのキーになる。
	CreatedAt time.Time `json:"created_at"`
}

// Page は通知一覧APIのレスポンス。
type Page struct {
	// Notifications は新しい順に並んだ通知。
	Notifications []Record `json:"notifications"`
	// NextCursor は次ページ取得時にbeforeへ渡す不透明なカーソル。空ページでは空文字。
	NextCursor string `json:"next_cursor,omitempty"`
	// HasMore は返却件数がlimitと一致した場合にtrueとなる。
	HasMore bool `json:"has_more"`
}

// Preferences はユーザーごとの通知設定。
type Preferences struct {
	// UserID は設定の所有者。
	UserID string `json:"user_id"`
	// Settings は通知種別ごとの配信可否。
	Settings map[string]bool `json:"settings"`
}

// Allows は指定した種別の通知を配信してよいかを返す。
// 明示的にfalseが設定されていない種別は配信対象になる。
func (p Preferences) Allows(notificationType string) bool {
	enabled, ok := p.Settings[notificationType]
	return !ok || enabled
}

// Types は設定に含まれる種別を昇順で返す。
func (p Preferences) Types() []string {
	types := make([]string, 0, len(p.Settings))
	for t := range p.Settings {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
