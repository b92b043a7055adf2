package event

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher はイベントをtopic型エクスチェンジへ発行するAMQPクライアント。
// 通知のプロデューサー（イベント・グループ機能など）や開発用CLIから使用する。
type Publisher struct {
	// conn はRabbitMQへの接続。
	conn *amqp.Connection
	// exchange は発行先のエクスチェンジ名。
	exchange string
}

// NewPublisher はRabbitMQに接続し、エクスチェンジを宣言したPublisherを生成する。
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネルの作成に失敗: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("エクスチェンジの宣言に失敗: %w", err)
	}

	return &Publisher{conn: conn, exchange: exchange}, nil
}

// Publish はイベントをJSONにシリアライズして永続メッセージとして発行する。
// routingKeyが空の場合はイベント種別から決まるキーを使う。
func (p *Publisher) Publish(ctx context.Context, routingKey string, e *Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	if routingKey == "" {
		routingKey = e.EventType.RoutingKey()
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("チャネルの作成に失敗: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         string(e.EventType),
		Timestamp:    e.CreatedAt,
		Body:         body,
	})
}

// Close はRabbitMQへの接続を閉じる。
func (p *Publisher) Close() error {
	return p.conn.Close()
}
