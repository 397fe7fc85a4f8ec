package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	cashbox "fuelsite-cloud/internal/cashbox/domain"
)

// SessionRepository is an in-memory session store. The check-and-insert in
// CreateSession runs under one lock so concurrent opens cannot both succeed.
type SessionRepository struct {
	mu   sync.RWMutex
	data map[string]*cashbox.Session
	// openByDay indexes the open session id per operating day key.
	openByDay map[string]string
}

// NewSessionRepository constructs a repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		data:      make(map[string]*cashbox.Session),
		openByDay: make(map[string]string),
	}
}

// CreateSession inserts an open session.
func (r *SessionRepository) CreateSession(ctx context.Context, params cashbox.OpenParams) (*cashbox.Session, error) {
	_ = ctx
	session, err := cashbox.NewSession(params)
	if err != nil {
		return nil, err
	}
	key := cashbox.FormatDay(session.OperatingDay)

	r.mu.Lock()
	defer r.mu.Unlock()
	if openID, ok := r.openByDay[key]; ok {
		return nil, &cashbox.OpenSessionConflictError{SessionID: openID, OperatingDay: session.OperatingDay}
	}
	if _, exists := r.data[session.ID]; exists {
		return nil, cashbox.NewValidationError("id", "duplicate")
	}
	r.data[session.ID] = session
	r.openByDay[key] = session.ID
	return session.Clone(), nil
}

// FindOpenSessionForDay returns the open session for day, or nil.
func (r *SessionRepository) FindOpenSessionForDay(ctx context.Context, day time.Time) (*cashbox.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.openByDay[cashbox.FormatDay(cashbox.NormalizeDay(day))]
	if !ok {
		return nil, nil
	}
	return r.data[id].Clone(), nil
}

// FindLastSessionForDay returns the latest closed session for day, or nil.
func (r *SessionRepository) FindLastSessionForDay(ctx context.Context, day time.Time) (*cashbox.Session, error) {
	_ = ctx
	day = cashbox.NormalizeDay(day)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *cashbox.Session
	for _, session := range r.data {
		if !session.IsClosed || session.ClosedAt == nil || !session.OperatingDay.Equal(day) {
			continue
		}
		if last == nil || session.ClosedAt.After(*last.ClosedAt) {
			last = session
		}
	}
	return last.Clone(), nil
}

// GetSession loads a session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*cashbox.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data[id].Clone(), nil
}

// CloseSession closes an open session or reads back an already closed one.
func (r *SessionRepository) CloseSession(ctx context.Context, id string, params cashbox.CloseParams) (*cashbox.Session, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.data[id]
	if session == nil {
		return nil, false, cashbox.ErrSessionNotFound
	}
	closed, err := session.ApplyClose(params)
	if err != nil {
		return nil, false, err
	}
	if closed {
		delete(r.openByDay, cashbox.FormatDay(session.OperatingDay))
	}
	return session.Clone(), closed, nil
}

// ListEvents returns events of sessions filed under day.
func (r *SessionRepository) ListEvents(ctx context.Context, day time.Time) ([]cashbox.Event, error) {
	_ = ctx
	day = cashbox.NormalizeDay(day)
	r.mu.RLock()
	var events []cashbox.Event
	for _, session := range r.data {
		if session.OperatingDay.Equal(day) {
			events = append(events, session.Events()...)
		}
	}
	r.mu.RUnlock()
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// Put stores a session as-is, bypassing lifecycle checks. It is meant for
// seeding historical rows in tests and local runs.
func (r *SessionRepository) Put(session *cashbox.Session) {
	if session == nil {
		return
	}
	copy := session.Clone()
	copy.OperatingDay = cashbox.NormalizeDay(copy.OperatingDay)
	key := cashbox.FormatDay(copy.OperatingDay)
	r.mu.Lock()
	r.data[copy.ID] = copy
	if copy.IsClosed {
		if r.openByDay[key] == copy.ID {
			delete(r.openByDay, key)
		}
	} else {
		r.openByDay[key] = copy.ID
	}
	r.mu.Unlock()
}
