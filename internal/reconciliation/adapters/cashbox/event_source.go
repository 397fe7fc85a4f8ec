package cashbox

import (
	"context"
	"errors"
	"time"

	cashbox "fuelsite-cloud/internal/cashbox/domain"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
)

// EventSource exposes session store events as reconciliation boundaries.
type EventSource struct {
	store cashbox.SessionStore
}

// NewEventSource constructs the adapter.
func NewEventSource(store cashbox.SessionStore) (*EventSource, error) {
	if store == nil {
		return nil, errors.New("cashbox event source: nil session store")
	}
	return &EventSource{store: store}, nil
}

// ListEvents returns the boundaries of sessions filed under day.
func (s *EventSource) ListEvents(ctx context.Context, day time.Time) ([]reconciliation.Event, error) {
	events, err := s.store.ListEvents(ctx, cashbox.NormalizeDay(day))
	if err != nil {
		return nil, err
	}
	out := make([]reconciliation.Event, 0, len(events))
	for _, event := range events {
		switch event.Type {
		case cashbox.EventOpen:
			out = append(out, reconciliation.Event{At: event.Timestamp, Kind: reconciliation.BoundaryOpen})
		case cashbox.EventClose:
			out = append(out, reconciliation.Event{At: event.Timestamp, Kind: reconciliation.BoundaryClose})
		}
	}
	return out, nil
}
