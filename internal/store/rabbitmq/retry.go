package rabbitmq

import (
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryCountHeader counts trips through the retry queue. Nack(requeue=true)
// would redeliver without it and loop forever on a persistent failure.
const RetryCountHeader = "x-retry-count"

// RetryCount returns how many times d has already been retried.
func RetryCount(d amqp.Delivery) int {
	switch v := d.Headers[RetryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RetryPublishing builds the copy of d that goes to the retry queue. It
// expires there after delay and dead-letters back to the main queue.
func RetryPublishing(d amqp.Delivery, delay time.Duration) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		if k == "x-death" {
			continue
		}
		headers[k] = v
	}
	headers[RetryCountHeader] = int32(RetryCount(d) + 1)

	return amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Headers:      headers,
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Timestamp:    time.Now(),
		Body:         d.Body,
	}
}

// Retrier sends failed deliveries through the retry queue until they have
// used maxRetries attempts.
type Retrier struct {
	ch         *amqp.Channel
	queue      string
	maxRetries int
	delay      time.Duration

	mu sync.Mutex
}

func NewRetrier(ch *amqp.Channel, queue string, maxRetries int, delay time.Duration) *Retrier {
	return &Retrier{ch: ch, queue: queue, maxRetries: maxRetries, delay: delay}
}

// Retry republishes d to the retry queue and acks the original. It reports
// false, leaving d untouched, when d is out of retries or the republish
// failed; the caller then nacks d into the DLQ.
func (r *Retrier) Retry(ctx context.Context, d amqp.Delivery) (bool, error) {
	if RetryCount(d) >= r.maxRetries {
		return false, nil
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	r.mu.Lock()
	err := r.ch.PublishWithContext(cctx, "", RetryQueue(r.queue), false, false, RetryPublishing(d, r.delay))
	r.mu.Unlock()
	if err != nil {
		return false, err
	}
	return true, d.Ack(false)
}
