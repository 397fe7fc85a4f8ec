package cashbox

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusOpen is reported for an operating day with an open session.
	StatusOpen = "abierta"
	// StatusClosed is reported for an operating day without an open session.
	StatusClosed = "cerrada"
)

// Operator identifies who performed an open or close.
type Operator struct {
	ID   string
	Name string
}

// Session is one cash-drawer run for part of an operating day.
// Closing fields stay nil until the session is closed.
type Session struct {
	ID            string
	OperatingDay  time.Time
	ShiftLabel    string
	OpenedAt      time.Time
	OpenedBy      Operator
	OpeningAmount decimal.Decimal

	IsClosed      bool
	ClosedAt      *time.Time
	ClosedBy      *Operator
	ClosingAmount *decimal.Decimal
	SalesAmount   *decimal.Decimal
	Notes         string
}

// OpenParams carries the fields a store needs to create a session.
type OpenParams struct {
	ID            string
	OperatingDay  time.Time
	ShiftLabel    string
	OpenedAt      time.Time
	OpenedBy      Operator
	OpeningAmount decimal.Decimal
}

// CloseParams carries the fields written when a session is closed.
type CloseParams struct {
	ClosedAt      time.Time
	ClosedBy      Operator
	ClosingAmount decimal.Decimal
	SalesAmount   *decimal.Decimal
	Notes         string
}

// Validate checks the open invariants.
func (p OpenParams) Validate() error {
	if p.ID == "" {
		return NewValidationError("id", "required")
	}
	if p.OperatingDay.IsZero() {
		return NewValidationError("operating_day", "required")
	}
	if p.OpenedAt.IsZero() {
		return NewValidationError("opened_at", "required")
	}
	if strings.TrimSpace(p.OpenedBy.ID) == "" {
		return NewValidationError("operator_id", "required")
	}
	if p.OpeningAmount.IsNegative() {
		return NewValidationError("opening_amount", "must be >= 0")
	}
	return nil
}

// Validate checks the close invariants.
func (p CloseParams) Validate() error {
	if p.ClosedAt.IsZero() {
		return NewValidationError("closed_at", "required")
	}
	if strings.TrimSpace(p.ClosedBy.ID) == "" {
		return NewValidationError("operator_id", "required")
	}
	if p.ClosingAmount.IsNegative() {
		return NewValidationError("closing_amount", "must be >= 0")
	}
	if p.SalesAmount != nil && p.SalesAmount.IsNegative() {
		return NewValidationError("sales_amount", "must be >= 0")
	}
	return nil
}

// NewSession builds an open session from validated params.
func NewSession(p OpenParams) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:            p.ID,
		OperatingDay:  NormalizeDay(p.OperatingDay),
		ShiftLabel:    strings.TrimSpace(p.ShiftLabel),
		OpenedAt:      p.OpenedAt.UTC(),
		OpenedBy:      p.OpenedBy,
		OpeningAmount: p.OpeningAmount,
	}, nil
}

// ApplyClose marks the session closed. It reports false and leaves the
// session untouched when it was already closed.
func (s *Session) ApplyClose(p CloseParams) (bool, error) {
	if s == nil {
		return false, ErrNilSession
	}
	if s.IsClosed {
		return false, nil
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	closedAt := p.ClosedAt.UTC()
	closedBy := p.ClosedBy
	closing := p.ClosingAmount
	s.IsClosed = true
	s.ClosedAt = &closedAt
	s.ClosedBy = &closedBy
	s.ClosingAmount = &closing
	if p.SalesAmount != nil {
		sales := *p.SalesAmount
		s.SalesAmount = &sales
	}
	s.Notes = strings.TrimSpace(p.Notes)
	return true, nil
}

// Events returns the open event and, once closed, the close event.
func (s *Session) Events() []Event {
	if s == nil {
		return nil
	}
	events := []Event{{
		Timestamp:    s.OpenedAt,
		Type:         EventOpen,
		SessionID:    s.ID,
		OperatingDay: s.OperatingDay,
	}}
	if s.IsClosed && s.ClosedAt != nil {
		events = append(events, Event{
			Timestamp:    *s.ClosedAt,
			Type:         EventClose,
			SessionID:    s.ID,
			OperatingDay: s.OperatingDay,
		})
	}
	return events
}

// Clone returns a detached deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copy := *s
	if s.ClosedAt != nil {
		closedAt := *s.ClosedAt
		copy.ClosedAt = &closedAt
	}
	if s.ClosedBy != nil {
		closedBy := *s.ClosedBy
		copy.ClosedBy = &closedBy
	}
	if s.ClosingAmount != nil {
		closing := *s.ClosingAmount
		copy.ClosingAmount = &closing
	}
	if s.SalesAmount != nil {
		sales := *s.SalesAmount
		copy.SalesAmount = &sales
	}
	return &copy
}

// EventType distinguishes open and close events.
type EventType string

const (
	EventOpen  EventType = "open"
	EventClose EventType = "close"
)

// Event is an open or close boundary derived from a session row.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	SessionID    string
	OperatingDay time.Time
}
