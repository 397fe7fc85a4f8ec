package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	cashbox "fuelsite-cloud/internal/cashbox/domain"
)

const (
	defaultSessionsTable = "cash_sessions"

	// openSessionIndex is the partial unique index on (operating_day) WHERE NOT is_closed.
	openSessionIndex = "cash_sessions_one_open_per_day"

	pgUniqueViolation = "23505"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repository.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SessionRepository is a Postgres session store.
type SessionRepository struct {
	db    DBTX
	table string
}

// SessionOption configures the repository.
type SessionOption func(*SessionRepository)

// WithSessionTable overrides the default table name.
func WithSessionTable(table string) SessionOption {
	return func(repo *SessionRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSessionRepository constructs a repository.
func NewSessionRepository(db DBTX, opts ...SessionOption) *SessionRepository {
	repo := &SessionRepository{db: db, table: defaultSessionsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

const sessionColumns = `id, operating_day, shift_label, opened_at, opened_by, opened_by_name, opening_amount,
	is_closed, closed_at, closed_by, closed_by_name, closing_amount, sales_amount, notes`

// CreateSession inserts an open session. The partial unique index rejects a
// second open row for the same day even when two writers race.
func (r *SessionRepository) CreateSession(ctx context.Context, params cashbox.OpenParams) (*cashbox.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	session, err := cashbox.NewSession(params)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, operating_day, shift_label, opened_at, opened_by, opened_by_name, opening_amount, is_closed
) VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE)`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.OperatingDay,
		session.ShiftLabel,
		session.OpenedAt,
		session.OpenedBy.ID,
		nullString(session.OpenedBy.Name),
		session.OpeningAmount,
	)
	if err != nil {
		if isOpenSessionViolation(err) {
			conflict := &cashbox.OpenSessionConflictError{OperatingDay: session.OperatingDay}
			if open, findErr := r.FindOpenSessionForDay(ctx, session.OperatingDay); findErr == nil && open != nil {
				conflict.SessionID = open.ID
			}
			return nil, conflict
		}
		return nil, fmt.Errorf("session repo: insert: %w", err)
	}
	return session, nil
}

// FindOpenSessionForDay returns the open session for day, or nil.
func (r *SessionRepository) FindOpenSessionForDay(ctx context.Context, day time.Time) (*cashbox.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE operating_day = $1 AND NOT is_closed
LIMIT 1`, sessionColumns, r.table)
	return scanSession(r.db.QueryRowContext(ctx, query, cashbox.NormalizeDay(day)))
}

// FindLastSessionForDay returns the most recently closed session for day, or nil.
func (r *SessionRepository) FindLastSessionForDay(ctx context.Context, day time.Time) (*cashbox.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE operating_day = $1 AND is_closed
ORDER BY closed_at DESC
LIMIT 1`, sessionColumns, r.table)
	return scanSession(r.db.QueryRowContext(ctx, query, cashbox.NormalizeDay(day)))
}

// GetSession loads a session by id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*cashbox.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	if id == "" {
		return nil, errors.New("session repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, sessionColumns, r.table)
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

// CloseSession flips an open row to closed in one conditional update, so only
// one of several concurrent closes writes the closing fields.
func (r *SessionRepository) CloseSession(ctx context.Context, id string, params cashbox.CloseParams) (*cashbox.Session, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("session repo: nil db")
	}
	if err := params.Validate(); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET is_closed = TRUE, closed_at = $2, closed_by = $3, closed_by_name = $4,
	closing_amount = $5, sales_amount = $6, notes = $7
WHERE id = $1 AND NOT is_closed
RETURNING %s`, r.table, sessionColumns)

	session, err := scanSession(r.db.QueryRowContext(ctx, query,
		id,
		params.ClosedAt.UTC(),
		params.ClosedBy.ID,
		nullString(params.ClosedBy.Name),
		params.ClosingAmount,
		nullDecimal(params.SalesAmount),
		nullString(params.Notes),
	))
	if err != nil {
		return nil, false, fmt.Errorf("session repo: close: %w", err)
	}
	if session != nil {
		return session, true, nil
	}

	existing, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, cashbox.ErrSessionNotFound
	}
	return existing, false, nil
}

// ListEvents returns open/close events of sessions filed under day.
func (r *SessionRepository) ListEvents(ctx context.Context, day time.Time) ([]cashbox.Event, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE operating_day = $1
ORDER BY opened_at ASC`, sessionColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, cashbox.NormalizeDay(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []cashbox.Event
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, session.Events()...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*cashbox.Session, error) {
	var session cashbox.Session
	var openedByName sql.NullString
	var closedAt sql.NullTime
	var closedBy sql.NullString
	var closedByName sql.NullString
	var closingAmount decimal.NullDecimal
	var salesAmount decimal.NullDecimal
	var notes sql.NullString
	err := row.Scan(
		&session.ID,
		&session.OperatingDay,
		&session.ShiftLabel,
		&session.OpenedAt,
		&session.OpenedBy.ID,
		&openedByName,
		&session.OpeningAmount,
		&session.IsClosed,
		&closedAt,
		&closedBy,
		&closedByName,
		&closingAmount,
		&salesAmount,
		&notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	session.OperatingDay = cashbox.NormalizeDay(session.OperatingDay)
	session.OpenedAt = session.OpenedAt.UTC()
	if openedByName.Valid {
		session.OpenedBy.Name = openedByName.String
	}
	if closedAt.Valid {
		ts := closedAt.Time.UTC()
		session.ClosedAt = &ts
	}
	if closedBy.Valid {
		session.ClosedBy = &cashbox.Operator{ID: closedBy.String, Name: closedByName.String}
	}
	if closingAmount.Valid {
		amount := closingAmount.Decimal
		session.ClosingAmount = &amount
	}
	if salesAmount.Valid {
		amount := salesAmount.Decimal
		session.SalesAmount = &amount
	}
	if notes.Valid {
		session.Notes = notes.String
	}
	return &session, nil
}

func isOpenSessionViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == openSessionIndex
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}
