package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	metering "fuelsite-cloud/internal/metering/domain"
)

// SnapshotRepository keeps meter snapshots in memory.
type SnapshotRepository struct {
	mu       sync.RWMutex
	byNozzle map[string][]metering.Snapshot
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{byNozzle: make(map[string][]metering.Snapshot)}
}

// AppendSnapshots stores snapshots, keeping each nozzle's slice ordered by time.
func (r *SnapshotRepository) AppendSnapshots(ctx context.Context, snapshots []metering.Snapshot) error {
	_ = ctx
	for _, s := range snapshots {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshots {
		s.Timestamp = s.Timestamp.UTC()
		r.byNozzle[s.NozzleID] = append(r.byNozzle[s.NozzleID], s)
	}
	for id := range r.byNozzle {
		list := r.byNozzle[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	}
	return nil
}

// SnapshotsForNozzleInRange returns snapshots within [from, to].
func (r *SnapshotRepository) SnapshotsForNozzleInRange(ctx context.Context, nozzleID string, from, to time.Time) ([]metering.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []metering.Snapshot
	for _, s := range r.byNozzle[nozzleID] {
		if s.Timestamp.Before(from) || s.Timestamp.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
