package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultAuditTable = "audit_logs"

// Repository stores audit entries in Postgres.
type Repository struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// Option configures the repository.
type Option func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	repo := &Repository{
		db:    db,
		table: defaultAuditTable,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Log writes an audit entry, filling id, timestamp and digest when unset.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.Action == "" || entry.ResourceType == "" || entry.ResourceID == "" {
		return errors.New("audit repo: action and resource are required")
	}
	entry = r.prepare(entry)

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, actor, actor_name, action, resource_type, resource_id, operating_day,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Actor,
		nullString(entry.ActorName),
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		nullString(entry.OperatingDay),
		nullJSON(entry.Metadata),
		nullString(entry.PayloadDigest),
		nullString(entry.IP),
		nullString(entry.UserAgent),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit repo: insert: %w", err)
	}
	return nil
}

// ListForResource returns the entries of one resource, oldest first.
func (r *Repository) ListForResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, actor, actor_name, action, resource_type, resource_id, operating_day,
	metadata, payload_digest, ip, user_agent, created_at
FROM %s
WHERE resource_type = $1 AND resource_id = $2
ORDER BY created_at ASC, id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("audit repo: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var actorName, operatingDay, digest, ip, userAgent sql.NullString
		var metadata []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&actorName,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&operatingDay,
			&metadata,
			&digest,
			&ip,
			&userAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.ActorName = actorName.String
		entry.OperatingDay = operatingDay.String
		entry.Metadata = metadata
		entry.PayloadDigest = digest.String
		entry.IP = ip.String
		entry.UserAgent = userAgent.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullJSON(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return []byte(value)
}
