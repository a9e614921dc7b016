package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher delivers events to a sink. Implementations must not block the
// caller beyond a bounded enqueue.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emit builds and publishes an event, logging instead of failing when the
// publisher is nil or rejects the event. Services call this helper so event
// plumbing never alters operation outcomes.
func Emit(ctx context.Context, logger *slog.Logger, publisher Publisher, eventType EventType, subject string, attrs ...string) {
	if publisher == nil {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Subject:   subject,
	}
	if len(attrs)%2 == 0 && len(attrs) > 0 {
		event.Attributes = make(map[string]string, len(attrs)/2)
		for i := 0; i < len(attrs); i += 2 {
			event.Attributes[attrs[i]] = attrs[i+1]
		}
	}
	if err := publisher.Publish(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "event publish failed",
			"event_type", eventType,
			"subject", subject,
			"error", err.Error(),
		)
	}
}

// ChannelPublisher enqueues events onto a buffered channel consumed by a
// Worker. Enqueue drops when the buffer is full rather than blocking the
// operation path.
type ChannelPublisher struct {
	inbox chan Event
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{inbox: make(chan Event, buffer)}
}

// Inbox exposes the consuming side for a Worker.
func (p *ChannelPublisher) Inbox() <-chan Event { return p.inbox }

func (p *ChannelPublisher) Publish(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}
