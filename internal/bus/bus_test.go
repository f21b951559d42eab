package bus

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
	"github.com/NicolaiBoKunkel/e-commerce-project/internal/testutil"
)

type recorder struct {
	mu   sync.Mutex
	envs []events.Envelope
	fail int // number of initial deliveries to fail
}

func (r *recorder) handle(ctx context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return context.DeadlineExceeded
	}
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

func publishRaw(t *testing.T, conn *amqp.Connection, body []byte) {
	t.Helper()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.PublishWithContext(context.Background(), EventsExchange, "", false, false,
		amqp.Publishing{ContentType: "application/json", DeliveryMode: amqp.Persistent, Body: body}))
}

func TestFanoutDeliversToEveryBoundQueue(t *testing.T) {
	conn := testutil.StartRabbitMQ(t)
	logger := log.New(io.Discard, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &recorder{}
	second := &recorder{}
	require.NoError(t, Subscribe(ctx, conn, QueueName("svc-a"), first.handle, logger))
	require.NoError(t, Subscribe(ctx, conn, QueueName("svc-b"), second.handle, logger))

	pub, err := NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	env := events.NewOrderPlaced("u1", "Your order has been placed.")
	require.NoError(t, pub.Publish(ctx, env))

	require.Eventually(t, func() bool {
		return first.count() == 1 && second.count() == 1
	}, 10*time.Second, 50*time.Millisecond)

	require.Equal(t, events.TypeOrderPlaced, first.envs[0].Type)
	require.Equal(t, events.TypeOrderPlaced, second.envs[0].Type)
}

func TestMalformedMessageIsDroppedNotRedelivered(t *testing.T) {
	conn := testutil.StartRabbitMQ(t)
	logger := log.New(io.Discard, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	require.NoError(t, Subscribe(ctx, conn, QueueName("svc-a"), rec.handle, logger))

	pub, err := NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	// A non-JSON body and an envelope failing validation must both be acked
	// and dropped without blocking the valid message behind them.
	publishRaw(t, conn, []byte("not-json{"))
	publishRaw(t, conn, []byte(`{"type":"ORDER_PLACED"}`))
	require.NoError(t, pub.Publish(ctx, events.NewOrderPlaced("u1", "still alive")))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 10*time.Second, 50*time.Millisecond)

	require.Equal(t, "still alive", rec.envs[0].Message)

	// Give redelivery a chance to happen; it must not.
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestHandlerErrorCausesRedelivery(t *testing.T) {
	conn := testutil.StartRabbitMQ(t)
	logger := log.New(io.Discard, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{fail: 1}
	require.NoError(t, Subscribe(ctx, conn, QueueName("svc-a"), rec.handle, logger))

	pub, err := NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(ctx, events.NewOrderPlaced("u1", "retry me")))

	require.Eventually(t, func() bool {
		return rec.count() == 1
	}, 15*time.Second, 100*time.Millisecond)
}

func TestPublishRefusesInvalidEnvelope(t *testing.T) {
	conn := testutil.StartRabbitMQ(t)

	pub, err := NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	err = pub.Publish(context.Background(), events.Envelope{Type: events.TypeOrderPlaced})
	require.Error(t, err)
}
