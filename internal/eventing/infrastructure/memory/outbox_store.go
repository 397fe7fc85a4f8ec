package memory

import (
	"context"
	"strconv"
	"sync"

	"fuelsite-cloud/internal/eventing"
)

const maxAttempts = 5

type entry struct {
	record    eventing.OutboxRecord
	sent      bool
	lastError string
}

// OutboxStore is an in-memory outbox for tests and local runs.
type OutboxStore struct {
	mu      sync.Mutex
	seq     int
	entries []*entry
	byEvent map[string]*entry
}

// NewOutboxStore constructs an empty store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{byEvent: make(map[string]*entry)}
}

// Insert stores env unless its event id is already present.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byEvent[env.EventID]; ok {
		return existing.record.ID, nil
	}
	s.seq++
	e := &entry{record: eventing.OutboxRecord{ID: "outbox-" + strconv.Itoa(s.seq), Envelope: env}}
	s.entries = append(s.entries, e)
	s.byEvent[env.EventID] = e
	return e.record.ID, nil
}

// ListPending returns unsent records with attempts left, in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventing.OutboxRecord
	for _, e := range s.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e.sent || e.record.Attempts >= maxAttempts {
			continue
		}
		out = append(out, e.record)
	}
	return out, nil
}

// MarkSent marks the record sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.find(id); e != nil {
		e.sent = true
		e.lastError = ""
	}
	return nil
}

// MarkFailed increments the record's attempts.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, cause error) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.find(id); e != nil {
		e.record.Attempts++
		if cause != nil {
			e.lastError = cause.Error()
		}
	}
	return nil
}

// Sent returns the envelopes marked sent, in insertion order.
func (s *OutboxStore) Sent() []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventing.Envelope
	for _, e := range s.entries {
		if e.sent {
			out = append(out, e.record.Envelope)
		}
	}
	return out
}

func (s *OutboxStore) find(id string) *entry {
	for _, e := range s.entries {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}
