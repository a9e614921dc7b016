package events

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned when a bounded publisher cannot accept an event.
var ErrBufferFull = errors.New("event buffer full")

// Sink persists or forwards events consumed by the Worker.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Worker drains a channel publisher into a sink. It keeps background
// processing testable without wiring broker implementations.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes events until ctx is cancelled. Sink failures are logged and
// skipped; a lost informational event must not stop the drain loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Append(ctx, event); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "event sink append failed",
					"event_type", event.Type,
					"subject", event.Subject,
					"error", err.Error(),
				)
			}
		}
	}
}
