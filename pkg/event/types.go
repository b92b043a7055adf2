package event

import (
	"encoding/json"
	"time"

	"github.com/nao1215/notifyhub/pkg/notice"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeUser はユーザーエンティティを表す。通知イベントでは受信者を指す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationRequested はイベントやグループの操作によって通知の作成が要求されたことを表す。
	TypeNotificationRequested Type = "NotificationRequested"
)

// Event はメッセージブローカー上を流れるイベントの封筒。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// NotificationRequestedData はNotificationRequestedイベントのデータ。
type NotificationRequestedData struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Type は通知の種別。
	Type string `json:"type"`
	// Data は通知のペイロード（文字列またはオブジェクト）。
	Data notice.Payload `json:"data"`
	// Link はクライアントの遷移先。
	Link string `json:"link,omitempty"`
}

// RoutingKey はイベント種別に対応するAMQPのルーティングキーを返す。
func (t Type) RoutingKey() string {
	switch t {
	case TypeNotificationRequested:
		return "notification.requested"
	default:
		return "event." + string(t)
	}
}
