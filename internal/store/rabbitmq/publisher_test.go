package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/yt-assistant/internal/chat"
)

func TestEncodeDecodeExchange(t *testing.T) {
	errMsg := "Video unavailable"
	e := &chat.Exchange{
		RequestID:  "req-1",
		VideoID:    "abc",
		Operation:  chat.OpTranscript,
		Status:     chat.ExchangeFailed,
		Error:      &errMsg,
		DurationMs: 12,
	}

	body, err := EncodeExchange(e)
	require.NoError(t, err)
	assert.Len(t, e.ID, 26)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := DecodeExchange(body)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, chat.ExchangeFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, errMsg, *got.Error)
	assert.WithinDuration(t, e.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestDecodeExchange_Rejects(t *testing.T) {
	_, err := DecodeExchange([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeExchange([]byte(`{"exchange":{"video_id":"abc"}}`))
	assert.Error(t, err)
}

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "video_exchanges.retry", RetryQueue("video_exchanges"))
	assert.Equal(t, "video_exchanges.dlq", DeadLetterQueue("video_exchanges"))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(amqp.Delivery{}))
	assert.Equal(t, 2, RetryCount(amqp.Delivery{Headers: amqp.Table{RetryCountHeader: int32(2)}}))
	assert.Equal(t, 3, RetryCount(amqp.Delivery{Headers: amqp.Table{RetryCountHeader: int64(3)}}))
	assert.Equal(t, 0, RetryCount(amqp.Delivery{Headers: amqp.Table{RetryCountHeader: "x"}}))
}

func TestRetryPublishing(t *testing.T) {
	d := amqp.Delivery{
		ContentType: "application/json",
		MessageId:   "01J00000000000000000000000",
		Body:        []byte(`{"exchange":{}}`),
		Headers: amqp.Table{
			RetryCountHeader: int32(1),
			"x-death":        []interface{}{},
			"trace":          "t-1",
		},
	}

	p := RetryPublishing(d, 10*time.Second)

	assert.Equal(t, "10000", p.Expiration)
	assert.Equal(t, amqp.Persistent, p.DeliveryMode)
	assert.Equal(t, d.MessageId, p.MessageId)
	assert.Equal(t, d.Body, p.Body)
	assert.Equal(t, int32(2), p.Headers[RetryCountHeader])
	assert.Equal(t, "t-1", p.Headers["trace"])
	_, hasDeath := p.Headers["x-death"]
	assert.False(t, hasDeath)
	assert.Equal(t, int32(1), d.Headers[RetryCountHeader], "original headers untouched")
}

func TestRetrier_ExhaustedLeavesDeliveryToCaller(t *testing.T) {
	r := NewRetrier(nil, "video_exchanges", 3, time.Second)

	retried, err := r.Retry(context.Background(), amqp.Delivery{Headers: amqp.Table{RetryCountHeader: int32(3)}})
	require.NoError(t, err)
	assert.False(t, retried)

	r = NewRetrier(nil, "video_exchanges", 0, time.Second)
	retried, err = r.Retry(context.Background(), amqp.Delivery{})
	require.NoError(t, err)
	assert.False(t, retried, "zero retries sends every failure straight to the DLQ")
}
