package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/yt-assistant/internal/chat"
	"github.com/suPer8Hu/yt-assistant/internal/common"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

// ExchangeMessage is the queued form of a chat.Exchange.
type ExchangeMessage struct {
	Exchange chat.Exchange `json:"exchange"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareTopology declares queue with its retry queue (TTL, dead-letters
// back to queue) and its DLQ (target of nack without requeue). The worker
// declares the same topology.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := RetryQueue(queue)
	dlqQ := DeadLetterQueue(queue)

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

func RetryQueue(queue string) string      { return queue + ".retry" }
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// EncodeExchange assigns an id when missing so redeliveries stay idempotent
// and returns the message body.
func EncodeExchange(e *chat.Exchange) ([]byte, error) {
	if e.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return json.Marshal(ExchangeMessage{Exchange: *e})
}

// DecodeExchange parses a message body produced by EncodeExchange.
func DecodeExchange(body []byte) (*chat.Exchange, error) {
	var m ExchangeMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if m.Exchange.ID == "" || m.Exchange.VideoID == "" {
		return nil, errors.New("exchange message missing id or video_id")
	}
	return &m.Exchange, nil
}

func (p *Publisher) PublishExchange(ctx context.Context, e *chat.Exchange) error {
	body, err := EncodeExchange(e)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// RecordExchange implements chat.Recorder.
func (p *Publisher) RecordExchange(ctx context.Context, e *chat.Exchange) error {
	return p.PublishExchange(ctx, e)
}
