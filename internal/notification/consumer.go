package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/pkg/event"
	amqp "github.com/rabbitmq/amqp091-go"
)

// errMalformed は再試行しても処理できないメッセージを表す。
var errMalformed = errors.New("メッセージの形式が不正です")

// handleTimeout はメッセージ1件あたりの処理時間の上限。
const handleTimeout = 10 * time.Second

// Consumer はRabbitMQからNotificationRequestedイベントを受信して通知を作成する。
// 作成済み・設定による抑止はAck、形式不正はRejectし、ストレージ障害はキューに戻す。
type Consumer struct {
	// ledger は通知の作成先の台帳。
	ledger *Ledger
	// cfg はAMQPの接続設定。
	cfg config.AMQPConfig
	// conn はRabbitMQへの接続。
	conn *amqp.Connection
	// ch はメッセージ受信に使うチャネル。
	ch *amqp.Channel
	// msgChan はワーカーへ配るメッセージのバッファ。
	msgChan chan amqp.Delivery
	// done は受信ループを停止するためのチャネル。
	done chan struct{}
	// wg はワーカーの終了待ちに使う。
	wg sync.WaitGroup
	// startOnce はStartの多重実行を防ぐ。
	startOnce sync.Once
	// closeOnce はCloseの多重実行を防ぐ。
	closeOnce sync.Once
}

// NewConsumer はRabbitMQに接続し、エクスチェンジを宣言したConsumerを生成する。
func NewConsumer(cfg config.AMQPConfig, ledger *Ledger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQへの接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネルの作成に失敗: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("エクスチェンジの宣言に失敗: %w", err)
	}

	return &Consumer{
		ledger:  ledger,
		cfg:     cfg,
		conn:    conn,
		ch:      ch,
		msgChan: make(chan amqp.Delivery, cfg.Workers*2),
		done:    make(chan struct{}),
	}, nil
}

// Start はキューを宣言・バインドしてワーカーを起動する。
func (c *Consumer) Start() error {
	var startErr error
	c.startOnce.Do(func() {
		if err := c.setupQueue(); err != nil {
			startErr = err
			return
		}
		for range c.cfg.Workers {
			c.wg.Add(1)
			go c.workerLoop()
		}
		log.Printf("[Consumer] 受信を開始しました (queue=%s, key=%s, workers=%d)", c.cfg.Queue, c.cfg.RoutingKey, c.cfg.Workers)
	})
	return startErr
}

func (c *Consumer) setupQueue() error {
	if err := c.ch.Qos(c.cfg.Workers*2, 0, false); err != nil {
		return fmt.Errorf("QoSの設定に失敗: %w", err)
	}
	q, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("キューの宣言に失敗: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("キューのバインドに失敗: %w", err)
	}
	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("受信の開始に失敗: %w", err)
	}

	go func() {
		defer close(c.msgChan)
		for {
			select {
			case <-c.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("[Consumer] 配信チャネルが閉じられました")
					return
				}
				c.msgChan <- msg
			}
		}
	}()
	return nil
}

func (c *Consumer) workerLoop() {
	defer c.wg.Done()
	for msg := range c.msgChan {
		c.dispatch(msg)
	}
}

// dispatch はメッセージを処理し、結果に応じてAck/Reject/Nackする。
func (c *Consumer) dispatch(msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	err := c.handle(ctx, msg.Body)
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.Is(err, errMalformed), errors.Is(err, ErrValidation):
		consumerMessagesTotal.WithLabelValues("rejected").Inc()
		log.Printf("[Consumer] メッセージを破棄します (id=%s): %v", msg.MessageId, err)
		_ = msg.Reject(false)
	default:
		consumerMessagesTotal.WithLabelValues("requeued").Inc()
		log.Printf("[Consumer] メッセージを再キューします (id=%s): %v", msg.MessageId, err)
		_ = msg.Nack(false, true)
	}
}

// handle はNotificationRequestedイベント1件から通知を作成する。
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	e, err := event.Decode(body)
	if err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	if e.EventType != event.TypeNotificationRequested {
		return fmt.Errorf("%w: 想定外のイベント種別です: %s", errMalformed, e.EventType)
	}
	data, err := event.DecodeData[event.NotificationRequestedData](e)
	if err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}

	rec, err := c.ledger.Create(ctx, data.RecipientID, data.Type, data.Data, data.Link)
	if err != nil {
		return err
	}
	if rec == nil {
		consumerMessagesTotal.WithLabelValues("suppressed").Inc()
		return nil
	}
	consumerMessagesTotal.WithLabelValues("created").Inc()
	return nil
}

// Close は受信を停止し、処理中のメッセージの完了を待ってから接続を閉じる。
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		if c.ch != nil {
			_ = c.ch.Close()
		}
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
