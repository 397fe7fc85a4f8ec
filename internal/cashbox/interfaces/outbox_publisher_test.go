package interfaces

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuelsite-cloud/internal/cashbox/application"
	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/eventing"
	"fuelsite-cloud/internal/eventing/infrastructure/memory"
	"fuelsite-cloud/internal/platform/logging"
)

type recordingPublisher struct {
	opened []application.SessionOpened
	closed []application.SessionClosed
}

func (r *recordingPublisher) PublishSessionOpened(ctx context.Context, event application.SessionOpened) error {
	r.opened = append(r.opened, event)
	return nil
}

func (r *recordingPublisher) PublishSessionClosed(ctx context.Context, event application.SessionClosed) error {
	r.closed = append(r.closed, event)
	return nil
}

func TestOutboxRelay_RoundTrip(t *testing.T) {
	store := memory.NewOutboxStore()
	dispatcher, err := eventing.NewDispatcher(store, logging.Discard())
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	target := &recordingPublisher{}
	if err := SubscribeRelay(dispatcher, target); err != nil {
		t.Fatalf("relay: %v", err)
	}
	publisher := NewOutboxPublisher(eventing.NewPublisher(store))

	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, 1, 1, 22, 0, 0, 0, time.UTC)
	ctx := context.Background()
	opened := application.SessionOpened{
		SessionID:    "s-1",
		OperatingDay: day,
		ShiftLabel:   "noche",
		Operator:     cashbox.Operator{ID: "op-1"},
		OccurredAt:   at,
	}
	closed := application.SessionClosed{
		SessionID:     "s-1",
		OperatingDay:  day,
		ClosingAmount: decimal.RequireFromString("250.50"),
		Operator:      cashbox.Operator{ID: "op-2"},
		OccurredAt:    at.Add(8 * time.Hour),
	}
	if err := publisher.PublishSessionOpened(ctx, opened); err != nil {
		t.Fatalf("publish opened: %v", err)
	}
	// repeated publish of the same transition is stored once
	if err := publisher.PublishSessionOpened(ctx, opened); err != nil {
		t.Fatalf("republish opened: %v", err)
	}
	if err := publisher.PublishSessionClosed(ctx, closed); err != nil {
		t.Fatalf("publish closed: %v", err)
	}

	if sent, err := dispatcher.Dispatch(ctx, 10); err != nil || sent != 2 {
		t.Fatalf("dispatch: sent=%d err=%v", sent, err)
	}
	if len(target.opened) != 1 || target.opened[0].ShiftLabel != "noche" || !target.opened[0].OccurredAt.Equal(at) {
		t.Fatalf("unexpected opened events %+v", target.opened)
	}
	if len(target.closed) != 1 || !target.closed[0].ClosingAmount.Equal(decimal.RequireFromString("250.50")) {
		t.Fatalf("unexpected closed events %+v", target.closed)
	}

	sent := store.Sent()
	if len(sent) != 2 || sent[0].EventID != "s-1:opened" || sent[0].OperatingDay != "2025-01-01" {
		t.Fatalf("unexpected envelopes %+v", sent)
	}
}

func TestLoggingPublisher(t *testing.T) {
	p := NewLoggingPublisher(logging.Discard())
	if err := p.PublishSessionOpened(context.Background(), application.SessionOpened{SessionID: "s-1"}); err != nil {
		t.Fatalf("opened: %v", err)
	}
	var nilPublisher *LoggingPublisher
	if err := nilPublisher.PublishSessionClosed(context.Background(), application.SessionClosed{}); err == nil {
		t.Fatalf("expected nil publisher error")
	}
}
