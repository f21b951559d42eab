package notification

import (
	"context"
	"log"
	"time"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/events"
)

// Appender is the slice of Store the projector needs.
type Appender interface {
	Append(ctx context.Context, userID string, n Notification) error
}

// Projector consumes lifecycle events and appends them to the owning user's
// notification log.
type Projector struct {
	store  Appender
	logger *log.Logger
	now    func() time.Time
}

func NewProjector(store Appender, logger *log.Logger) *Projector {
	return &Projector{store: store, logger: logger, now: time.Now}
}

// HandleEvent accepts only the user-facing lifecycle types. Anything else on
// the fanout is acked without being stored, and lifecycle events missing the
// fields a notification needs are logged and discarded.
func (p *Projector) HandleEvent(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.TypeOrderPlaced, events.TypeOrderShipped, events.TypeOrderFailed:
	default:
		return nil
	}

	if env.UserID == "" || env.Message == "" {
		p.logger.Printf("discarding %s event missing userId or message", env.Type)
		return nil
	}

	n := Notification{
		Type:      env.Type,
		Message:   env.Message,
		Seen:      false,
		Timestamp: p.now().UTC(),
	}

	if err := p.store.Append(ctx, env.UserID, n); err != nil {
		// Notifications are best-effort: a failed write is not worth
		// redelivering the whole event for.
		p.logger.Printf("save notification for user %s: %v", env.UserID, err)
		return nil
	}

	p.logger.Printf("saved %s notification for user %s", env.Type, env.UserID)
	return nil
}
