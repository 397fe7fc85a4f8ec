package eventing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fuelsite-cloud/internal/observability/metrics"
	"fuelsite-cloud/internal/platform/logging"
)

const defaultDispatchLimit = 50

// OutboxRecord is a stored envelope awaiting delivery.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
	Attempts int
}

// OutboxWriter inserts envelopes. Inserting an event id twice is a no-op.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// OutboxStore provides access to undelivered records.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env Envelope) error

// Publisher writes events to the outbox.
type Publisher struct {
	outbox OutboxWriter
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter) *Publisher {
	return &Publisher{outbox: outbox}
}

// Publish wraps event in an envelope and stores it. Fields left empty in meta
// are taken from ctx.
func (p *Publisher) Publish(ctx context.Context, eventType string, event any, meta Meta) error {
	if p == nil || p.outbox == nil {
		return errors.New("eventing: nil outbox")
	}
	fromCtx := MetaFromContext(ctx)
	if meta.EventID == "" {
		meta.EventID = fromCtx.EventID
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = fromCtx.CorrelationID
	}
	env, err := BuildEnvelope(eventType, event, meta)
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return fmt.Errorf("eventing: outbox insert: %w", err)
	}
	return nil
}

// Dispatcher delivers pending outbox records to subscribed handlers.
type Dispatcher struct {
	outbox OutboxStore
	logger logrus.FieldLogger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(outbox OutboxStore, logger logrus.FieldLogger) (*Dispatcher, error) {
	if outbox == nil {
		return nil, errors.New("dispatcher: nil outbox store")
	}
	return &Dispatcher{
		outbox:   outbox,
		logger:   logging.OrDefault(logger),
		handlers: make(map[string][]Handler),
	}, nil
}

// Subscribe registers handler for eventType.
func (d *Dispatcher) Subscribe(eventType string, handler Handler) {
	if d == nil || handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch delivers up to limit pending records and returns how many were
// marked sent. A record is sent only when every handler succeeds; records
// without handlers are marked sent.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (int, error) {
	if d == nil {
		return 0, errors.New("dispatcher: nil dispatcher")
	}
	if limit <= 0 {
		limit = defaultDispatchLimit
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := d.deliver(WithEnvelope(ctx, record.Envelope), record.Envelope); err != nil {
			metrics.IncOutboxDelivery(metrics.ResultError)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"outbox_id":  record.ID,
				"event_id":   record.Envelope.EventID,
				"event_type": record.Envelope.EventType,
				"attempts":   record.Attempts + 1,
			}).Warn("outbox delivery failed")
			if markErr := d.outbox.MarkFailed(ctx, record.ID, err); markErr != nil {
				return sent, markErr
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, record.ID); err != nil {
			return sent, err
		}
		metrics.IncOutboxDelivery(metrics.ResultSuccess)
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[env.EventType]...)
	d.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// Run dispatches every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if d == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.Dispatch(ctx, defaultDispatchLimit); err != nil && ctx.Err() == nil {
			d.logger.WithError(err).Warn("outbox dispatch failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
