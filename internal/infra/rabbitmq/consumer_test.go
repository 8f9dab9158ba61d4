package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testConsumer(handler MessageHandler) *Consumer {
	return newConsumer(nil, nil, ConsumerConfig{WorkerCount: 2, BaseDelayMs: 1}, handler, zap.NewNop())
}

func TestProcessDeliveryAcksOnSuccess(t *testing.T) {
	acks := &ackRecorder{}
	var got []byte
	c := testConsumer(func(_ context.Context, body []byte) error {
		got = body
		return nil
	})

	c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: acks, DeliveryTag: 7, Body: []byte("hi")}, zap.NewNop())
	assert.Equal(t, []byte("hi"), got)
	assert.Equal(t, []uint64{7}, acks.acked)
	assert.Empty(t, acks.nacked)
}

func TestProcessDeliveryRequeuesOnError(t *testing.T) {
	acks := &ackRecorder{}
	c := testConsumer(func(context.Context, []byte) error { return errors.New("retry me") })

	c.processDelivery(context.Background(), amqp.Delivery{Acknowledger: acks, DeliveryTag: 3}, zap.NewNop())
	assert.Empty(t, acks.acked)
	assert.Equal(t, []uint64{3}, acks.nacked)
	assert.Equal(t, []bool{true}, acks.requeue)
}

func TestProcessDeliveryRequeuesOnShutdown(t *testing.T) {
	acks := &ackRecorder{}
	c := testConsumer(func(context.Context, []byte) error { return errors.New("retry me") })
	c.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.processDelivery(ctx, amqp.Delivery{Acknowledger: acks, DeliveryTag: 9}, zap.NewNop())
	assert.Equal(t, []bool{true}, acks.requeue)
}

func TestRunDrainsDeliveriesUntilCancel(t *testing.T) {
	acks := &ackRecorder{}
	handled := make(chan string, 3)
	c := testConsumer(func(_ context.Context, body []byte) error {
		handled <- string(body)
		return nil
	})

	deliveries := make(chan amqp.Delivery, 3)
	for i, body := range []string{"a", "b", "c"} {
		deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: uint64(i + 1), Body: []byte(body)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.run(ctx, deliveries)
		close(done)
	}()

	got := map[string]bool{}
	for range 3 {
		select {
		case b := <-handled:
			got[b] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for deliveries")
		}
	}
	cancel()
	<-done

	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, got)
	acks.mu.Lock()
	defer acks.mu.Unlock()
	assert.ElementsMatch(t, []uint64{1, 2, 3}, acks.acked)
}

func TestAttemptFromDelivery(t *testing.T) {
	assert.Equal(t, 1, attemptFromDelivery(amqp.Delivery{}))
	assert.Equal(t, 2, attemptFromDelivery(amqp.Delivery{Redelivered: true}))
	assert.Equal(t, 4, attemptFromDelivery(amqp.Delivery{Headers: amqp.Table{"x-delivery-count": int64(3)}}))
	assert.Equal(t, 2, attemptFromDelivery(amqp.Delivery{Headers: amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}},
	}}))
}

func TestBackoffIsCapped(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, backoff(base, 1))
	assert.Equal(t, 4*time.Second, backoff(base, 3))
	assert.Equal(t, maxBackoff, backoff(base, 10))
	require.Equal(t, maxBackoff, backoff(base, 200))
}
