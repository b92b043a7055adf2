package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nao1215/notifyhub/pkg/notice"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NotificationRequestedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := NotificationRequestedData{
			RecipientID: "user-1",
			Type:        notice.TypeGroupInvite,
			Data:        notice.Structured(map[string]any{"group": "写真部"}),
			Link:        "/groups/g-1",
		}

		before := time.Now().UTC()
		ev, err := NewNotificationRequested(data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("NewNotificationRequested()でエラーが発生: %v", err)
		}
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.AggregateID != "user-1" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "user-1")
		}
		if ev.AggregateType != AggregateTypeUser {
			t.Errorf("AggregateType = %q, want %q", ev.AggregateType, AggregateTypeUser)
		}
		if ev.EventType != TypeNotificationRequested {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeNotificationRequested)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded map[string]any
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded["recipient_id"] != "user-1" {
			t.Errorf("Data.recipient_id = %v, want user-1", decoded["recipient_id"])
		}
		payload, ok := decoded["data"].(map[string]any)
		if !ok || payload["group"] != "写真部" {
			t.Errorf("Data.data = %v, want オブジェクト", decoded["data"])
		}
	})

	t.Run("シリアライズできないデータはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := New("user-1", AggregateTypeUser, TypeNotificationRequested, map[string]any{"ch": make(chan int)})
		if err == nil {
			t.Error("チャネルを含むデータでエラーが返されなかった")
		}
	})
}

// TestDecode はメッセージ本文からイベントとデータを復元できることを検証する。
func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("発行したイベントを往復できること", func(t *testing.T) {
		t.Parallel()

		ev, err := NewNotificationRequested(NotificationRequestedData{
			RecipientID: "user-2",
			Type:        notice.TypeEventUpdate,
			Data:        notice.Text("開始時刻が変更されました"),
		})
		if err != nil {
			t.Fatalf("イベント生成に失敗: %v", err)
		}
		body, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("シリアライズに失敗: %v", err)
		}

		decoded, err := Decode(body)
		if err != nil {
			t.Fatalf("Decode()がエラーを返した: %v", err)
		}
		data, err := DecodeData[NotificationRequestedData](decoded)
		if err != nil {
			t.Fatalf("DecodeData()がエラーを返した: %v", err)
		}
		if data.RecipientID != "user-2" || data.Type != notice.TypeEventUpdate {
			t.Errorf("data = %+v", data)
		}
		if data.Data.Kind() != notice.PayloadText || data.Data.Text() != "開始時刻が変更されました" {
			t.Errorf("Data = %v, want テキストペイロード", data.Data.Render())
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Decode([]byte("{broken")); err == nil {
			t.Error("不正なJSONでエラーが返されなかった")
		}
	})

	t.Run("イベント種別がない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Decode([]byte(`{"id":"e-1","data":{}}`)); err == nil {
			t.Error("イベント種別なしでエラーが返されなかった")
		}
	})
}

// TestRoutingKey はイベント種別からルーティングキーが決まることを検証する。
func TestRoutingKey(t *testing.T) {
	t.Parallel()

	if got := TypeNotificationRequested.RoutingKey(); got != "notification.requested" {
		t.Errorf("RoutingKey() = %q, want notification.requested", got)
	}
	if got := Type("Other").RoutingKey(); got != "event.Other" {
		t.Errorf("RoutingKey() = %q, want event.Other", got)
	}
}
