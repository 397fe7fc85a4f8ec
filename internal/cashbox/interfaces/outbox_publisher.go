package interfaces

import (
	"context"
	"errors"
	"fmt"

	"fuelsite-cloud/internal/cashbox/application"
	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/eventing"
)

// Outbox event types for session lifecycle events.
const (
	EventSessionOpened = "cashbox.session_opened"
	EventSessionClosed = "cashbox.session_closed"
)

// OutboxPublisher writes session lifecycle events to the outbox. Event ids
// derive from the session id, so each transition is stored once.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishSessionOpened writes the event to the outbox.
func (p *OutboxPublisher) PublishSessionOpened(ctx context.Context, event application.SessionOpened) error {
	if p == nil || p.publisher == nil {
		return errors.New("session publisher: nil outbox publisher")
	}
	return p.publisher.Publish(ctx, EventSessionOpened, event, eventing.Meta{
		EventID:      event.SessionID + ":opened",
		OccurredAt:   event.OccurredAt,
		OperatingDay: cashbox.FormatDay(event.OperatingDay),
	})
}

// PublishSessionClosed writes the event to the outbox.
func (p *OutboxPublisher) PublishSessionClosed(ctx context.Context, event application.SessionClosed) error {
	if p == nil || p.publisher == nil {
		return errors.New("session publisher: nil outbox publisher")
	}
	return p.publisher.Publish(ctx, EventSessionClosed, event, eventing.Meta{
		EventID:      event.SessionID + ":closed",
		OccurredAt:   event.OccurredAt,
		OperatingDay: cashbox.FormatDay(event.OperatingDay),
	})
}

// SubscribeRelay forwards dispatched session envelopes to target.
func SubscribeRelay(dispatcher *eventing.Dispatcher, target application.SessionPublisher) error {
	if dispatcher == nil || target == nil {
		return errors.New("session relay: nil dispatcher or target")
	}
	dispatcher.Subscribe(EventSessionOpened, func(ctx context.Context, env eventing.Envelope) error {
		var event application.SessionOpened
		if err := env.Decode(&event); err != nil {
			return fmt.Errorf("session relay: decode %s: %w", env.EventID, err)
		}
		return target.PublishSessionOpened(ctx, event)
	})
	dispatcher.Subscribe(EventSessionClosed, func(ctx context.Context, env eventing.Envelope) error {
		var event application.SessionClosed
		if err := env.Decode(&event); err != nil {
			return fmt.Errorf("session relay: decode %s: %w", env.EventID, err)
		}
		return target.PublishSessionClosed(ctx, event)
	})
	return nil
}
