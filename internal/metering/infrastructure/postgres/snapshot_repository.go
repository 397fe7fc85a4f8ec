package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	metering "fuelsite-cloud/internal/metering/domain"
)

const defaultSnapshotsTable = "meter_snapshots"

// SnapshotRepository reads and appends meter snapshots in Postgres.
type SnapshotRepository struct {
	db    *sql.DB
	table string
}

// Option configures the repository.
type Option func(*SnapshotRepository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *SnapshotRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSnapshotRepository constructs a repository with the default table name.
func NewSnapshotRepository(db *sql.DB, opts ...Option) *SnapshotRepository {
	repo := &SnapshotRepository{db: db, table: defaultSnapshotsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SnapshotsForNozzleInRange returns snapshots within [from, to] ordered by time.
func (r *SnapshotRepository) SnapshotsForNozzleInRange(ctx context.Context, nozzleID string, from, to time.Time) ([]metering.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	if nozzleID == "" || from.IsZero() || to.IsZero() {
		return nil, errors.New("snapshot repo: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT taken_at, initial_reading, final_reading
FROM %s
WHERE nozzle_id = $1
	AND taken_at >= $2
	AND taken_at <= $3
ORDER BY taken_at ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, nozzleID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []metering.Snapshot
	for rows.Next() {
		snapshot := metering.Snapshot{NozzleID: nozzleID}
		if err := rows.Scan(&snapshot.Timestamp, &snapshot.InitialReading, &snapshot.FinalReading); err != nil {
			return nil, err
		}
		snapshot.Timestamp = snapshot.Timestamp.UTC()
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// AppendSnapshots inserts snapshots in one transaction. Rows already stored for
// the same nozzle and timestamp are left untouched.
func (r *SnapshotRepository) AppendSnapshots(ctx context.Context, snapshots []metering.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("snapshot repo: nil db")
	}
	if len(snapshots) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (nozzle_id, taken_at, initial_reading, final_reading)
VALUES ($1, $2, $3, $4)
ON CONFLICT (nozzle_id, taken_at) DO NOTHING`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range snapshots {
		if err := s.Validate(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, s.NozzleID, s.Timestamp.UTC(), s.InitialReading, s.FinalReading); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
