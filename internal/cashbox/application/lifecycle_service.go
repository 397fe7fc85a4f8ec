package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/observability/metrics"
)

// OpenCommand requests a new session for an operating day.
type OpenCommand struct {
	OperatingDay  time.Time
	ShiftLabel    string
	OpeningAmount decimal.Decimal
	Operator      cashbox.Operator
}

// CloseCommand requests closing a session.
type CloseCommand struct {
	SessionID     string
	ClosingAmount decimal.Decimal
	SalesAmount   *decimal.Decimal
	Notes         string
	Operator      cashbox.Operator
}

// DayStatus is the open/closed status of an operating day.
// Session is the open session, else the last closed one, else nil.
type DayStatus struct {
	OperatingDay time.Time
	Status       string
	Session      *cashbox.Session
}

// SessionOpened is emitted after a session is created.
type SessionOpened struct {
	SessionID    string
	OperatingDay time.Time
	ShiftLabel   string
	Operator     cashbox.Operator
	OccurredAt   time.Time
}

// SessionClosed is emitted once when a session is closed.
type SessionClosed struct {
	SessionID     string
	OperatingDay  time.Time
	ClosingAmount decimal.Decimal
	Operator      cashbox.Operator
	OccurredAt    time.Time
}

// SessionPublisher emits lifecycle events.
type SessionPublisher interface {
	PublishSessionOpened(ctx context.Context, event SessionOpened) error
	PublishSessionClosed(ctx context.Context, event SessionClosed) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces session ids.
type IDGenerator func() string

// LifecycleService enforces session open/close transitions.
type LifecycleService struct {
	store     cashbox.SessionStore
	clock     Clock
	publisher SessionPublisher
	newID     IDGenerator
}

// Option configures the service.
type Option func(*LifecycleService)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *LifecycleService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(publisher SessionPublisher) Option {
	return func(s *LifecycleService) {
		s.publisher = publisher
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *LifecycleService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewLifecycleService constructs the service.
func NewLifecycleService(store cashbox.SessionStore, opts ...Option) (*LifecycleService, error) {
	if store == nil {
		return nil, errors.New("lifecycle service: nil session store")
	}
	s := &LifecycleService{
		store: store,
		clock: SystemClock{},
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open creates a session unless the day already has one open, whatever its shift label.
func (s *LifecycleService) Open(ctx context.Context, cmd OpenCommand) (*cashbox.Session, error) {
	if cmd.OperatingDay.IsZero() {
		return nil, cashbox.NewValidationError("operating_day", "required")
	}
	if strings.TrimSpace(cmd.Operator.ID) == "" {
		return nil, cashbox.NewValidationError("operator_id", "required")
	}
	if cmd.OpeningAmount.IsNegative() {
		return nil, cashbox.NewValidationError("opening_amount", "must be >= 0")
	}
	day := cashbox.NormalizeDay(cmd.OperatingDay)

	open, err := s.store.FindOpenSessionForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if open != nil {
		metrics.IncSessionConflict()
		return nil, &cashbox.OpenSessionConflictError{SessionID: open.ID, OperatingDay: day}
	}

	now := s.clock.Now().UTC()
	session, err := s.store.CreateSession(ctx, cashbox.OpenParams{
		ID:            s.newID(),
		OperatingDay:  day,
		ShiftLabel:    cmd.ShiftLabel,
		OpenedAt:      now,
		OpenedBy:      cmd.Operator,
		OpeningAmount: cmd.OpeningAmount,
	})
	if err != nil {
		if errors.Is(err, cashbox.ErrSessionAlreadyOpen) {
			metrics.IncSessionConflict()
		}
		return nil, err
	}
	metrics.IncSessionOpened()

	if s.publisher != nil {
		if err := s.publisher.PublishSessionOpened(ctx, SessionOpened{
			SessionID:    session.ID,
			OperatingDay: session.OperatingDay,
			ShiftLabel:   session.ShiftLabel,
			Operator:     session.OpenedBy,
			OccurredAt:   now,
		}); err != nil {
			return session, err
		}
	}
	return session, nil
}

// Close closes a session. The bool reports whether this call closed it;
// closing an already closed session returns the stored state and false.
func (s *LifecycleService) Close(ctx context.Context, cmd CloseCommand) (*cashbox.Session, bool, error) {
	if strings.TrimSpace(cmd.SessionID) == "" {
		return nil, false, cashbox.NewValidationError("session_id", "required")
	}
	params := cashbox.CloseParams{
		ClosedAt:      s.clock.Now().UTC(),
		ClosedBy:      cmd.Operator,
		ClosingAmount: cmd.ClosingAmount,
		SalesAmount:   cmd.SalesAmount,
		Notes:         cmd.Notes,
	}
	if err := params.Validate(); err != nil {
		return nil, false, err
	}

	session, closed, err := s.store.CloseSession(ctx, cmd.SessionID, params)
	if err != nil {
		return nil, false, err
	}
	if !closed {
		// repeated close: stored closing fields win, no event
		metrics.IncSessionCloseRepeated()
		return session, false, nil
	}
	metrics.IncSessionClosed()

	if s.publisher != nil {
		if err := s.publisher.PublishSessionClosed(ctx, SessionClosed{
			SessionID:     session.ID,
			OperatingDay:  session.OperatingDay,
			ClosingAmount: cmd.ClosingAmount,
			Operator:      cmd.Operator,
			OccurredAt:    params.ClosedAt,
		}); err != nil {
			return session, true, err
		}
	}
	return session, true, nil
}

// OperatingDayStatus reports whether day has an open session.
func (s *LifecycleService) OperatingDayStatus(ctx context.Context, day time.Time) (DayStatus, error) {
	if day.IsZero() {
		return DayStatus{}, cashbox.NewValidationError("operating_day", "required")
	}
	day = cashbox.NormalizeDay(day)

	open, err := s.store.FindOpenSessionForDay(ctx, day)
	if err != nil {
		return DayStatus{}, err
	}
	if open != nil {
		return DayStatus{OperatingDay: day, Status: cashbox.StatusOpen, Session: open}, nil
	}

	last, err := s.store.FindLastSessionForDay(ctx, day)
	if err != nil {
		return DayStatus{}, err
	}
	return DayStatus{OperatingDay: day, Status: cashbox.StatusClosed, Session: last}, nil
}
