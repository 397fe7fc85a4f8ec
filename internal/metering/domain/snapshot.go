package metering

import (
	"context"
	"errors"
	"time"
)

// Snapshot is a timestamped pair of cumulative counter readings for a nozzle.
// Both readings are monotonically non-decreasing over time.
type Snapshot struct {
	NozzleID       string
	Timestamp      time.Time
	InitialReading float64
	FinalReading   float64
}

// Validate checks snapshot invariants.
func (s Snapshot) Validate() error {
	if s.NozzleID == "" {
		return errors.New("meter snapshot: empty nozzle id")
	}
	if s.Timestamp.IsZero() {
		return errors.New("meter snapshot: zero timestamp")
	}
	if s.InitialReading < 0 || s.FinalReading < 0 {
		return errors.New("meter snapshot: negative reading")
	}
	return nil
}

// SnapshotReader loads snapshots for one nozzle within [from, to], ordered by timestamp.
type SnapshotReader interface {
	SnapshotsForNozzleInRange(ctx context.Context, nozzleID string, from, to time.Time) ([]Snapshot, error)
}

// SnapshotWriter appends snapshots.
type SnapshotWriter interface {
	AppendSnapshots(ctx context.Context, snapshots []Snapshot) error
}
