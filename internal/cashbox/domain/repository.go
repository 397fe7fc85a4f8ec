package cashbox

import (
	"context"
	"time"
)

// SessionStore persists cash-box sessions. It holds no business rules beyond
// the per-day open uniqueness, which it must enforce atomically.
type SessionStore interface {
	// CreateSession inserts an open session. It returns an error matching
	// ErrSessionAlreadyOpen when the day already has an open session.
	CreateSession(ctx context.Context, params OpenParams) (*Session, error)
	// FindOpenSessionForDay returns nil when no session is open.
	FindOpenSessionForDay(ctx context.Context, day time.Time) (*Session, error)
	// FindLastSessionForDay returns the most recently closed session, or nil.
	FindLastSessionForDay(ctx context.Context, day time.Time) (*Session, error)
	// GetSession returns nil when the id is unknown.
	GetSession(ctx context.Context, id string) (*Session, error)
	// CloseSession closes an open session. When the session was already closed
	// it returns the stored row and closed=false. Unknown ids return ErrSessionNotFound.
	CloseSession(ctx context.Context, id string, params CloseParams) (session *Session, closed bool, err error)
	// ListEvents returns open/close events of sessions filed under day, ordered by timestamp.
	ListEvents(ctx context.Context, day time.Time) ([]Event, error)
}
