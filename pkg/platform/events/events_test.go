package events_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amanah/pkg/platform/events"
)

func TestChannelPublisher(t *testing.T) {
	t.Run("enqueues up to the buffer", func(t *testing.T) {
		pub := events.NewChannelPublisher(2)
		ctx := context.Background()

		require.NoError(t, pub.Publish(ctx, events.Event{ID: "1"}))
		require.NoError(t, pub.Publish(ctx, events.Event{ID: "2"}))

		err := pub.Publish(ctx, events.Event{ID: "3"})
		assert.ErrorIs(t, err, events.ErrBufferFull)
	})

	t.Run("drained events free buffer space", func(t *testing.T) {
		pub := events.NewChannelPublisher(1)
		ctx := context.Background()

		require.NoError(t, pub.Publish(ctx, events.Event{ID: "1"}))
		got := <-pub.Inbox()
		assert.Equal(t, "1", got.ID)

		require.NoError(t, pub.Publish(ctx, events.Event{ID: "2"}))
	})
}

func TestWorkerDrainsToSink(t *testing.T) {
	pub := events.NewChannelPublisher(16)
	sink := events.NewMemorySink()
	worker := events.NewWorker(sink, pub.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Publish(ctx, events.Event{
			ID:   string(rune('a' + i)),
			Type: events.EventEscrowOpened,
		}))
	}

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

type failingSink struct {
	calls atomic.Int64
}

func (s *failingSink) Append(context.Context, events.Event) error {
	s.calls.Add(1)
	return errors.New("sink unavailable")
}

func TestWorkerSurvivesSinkFailure(t *testing.T) {
	pub := events.NewChannelPublisher(16)
	sink := &failingSink{}
	worker := events.NewWorker(sink, pub.Inbox(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	require.NoError(t, pub.Publish(ctx, events.Event{ID: "1"}))
	require.NoError(t, pub.Publish(ctx, events.Event{ID: "2"}))

	require.Eventually(t, func() bool {
		return sink.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestEmit(t *testing.T) {
	t.Run("pairs attributes and fills envelope", func(t *testing.T) {
		pub := events.NewChannelPublisher(1)
		events.Emit(context.Background(), slog.Default(), pub, events.EventReleaseExecuted, "ESC-2025-000001",
			"recipient", "seller-1",
			"amount", "1000000",
		)

		got := <-pub.Inbox()
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, events.EventReleaseExecuted, got.Type)
		assert.Equal(t, "ESC-2025-000001", got.Subject)
		assert.False(t, got.Timestamp.IsZero())
		assert.Equal(t, map[string]string{
			"recipient": "seller-1",
			"amount":    "1000000",
		}, got.Attributes)
	})

	t.Run("no attributes leaves the map nil", func(t *testing.T) {
		pub := events.NewChannelPublisher(1)
		events.Emit(context.Background(), slog.Default(), pub, events.EventPlanCompleted, "plan-1")

		got := <-pub.Inbox()
		assert.Nil(t, got.Attributes)
	})

	t.Run("nil publisher is a no-op", func(t *testing.T) {
		events.Emit(context.Background(), slog.Default(), nil, events.EventEscrowOpened, "ESC-2025-000001")
	})

	t.Run("full buffer never panics or blocks", func(t *testing.T) {
		pub := events.NewChannelPublisher(0)
		events.Emit(context.Background(), slog.Default(), pub, events.EventEscrowOpened, "ESC-2025-000001")
	})
}
