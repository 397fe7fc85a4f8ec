package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	catalog "fuelsite-cloud/internal/catalog/domain"
	metering "fuelsite-cloud/internal/metering/domain"
	meteringmemory "fuelsite-cloud/internal/metering/infrastructure/memory"
	"fuelsite-cloud/internal/platform/logging"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type mapEvents map[string][]reconciliation.Event

func (m mapEvents) ListEvents(ctx context.Context, day time.Time) ([]reconciliation.Event, error) {
	_ = ctx
	return m[day.Format("2006-01-02")], nil
}

type staticCatalog struct{}

func (staticCatalog) ListNozzles(ctx context.Context) ([]catalog.Nozzle, error) {
	return []catalog.Nozzle{
		{ID: "n-1", PumpID: "p-1", ProductID: "regular", Label: "M1"},
		{ID: "n-2", PumpID: "p-1", ProductID: "regular", Label: "M2"},
	}, nil
}

func (staticCatalog) ListPumps(ctx context.Context) ([]catalog.Pump, error) {
	return []catalog.Pump{{ID: "p-1", Label: "Surtidor 1"}}, nil
}

func (staticCatalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return []catalog.Product{{ID: "regular", Label: "Regular", UnitPrice: decimal.RequireFromString("2")}}, nil
}

type failingReader struct {
	metering.SnapshotReader
	failNozzle string
	calls      []time.Time
}

func (r *failingReader) SnapshotsForNozzleInRange(ctx context.Context, nozzleID string, from, to time.Time) ([]metering.Snapshot, error) {
	r.calls = append(r.calls, from)
	if nozzleID == r.failNozzle {
		return nil, errors.New("meter gateway timeout")
	}
	return r.SnapshotReader.SnapshotsForNozzleInRange(ctx, nozzleID, from, to)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return ts
}

func seedSnapshots(t *testing.T) *meteringmemory.SnapshotRepository {
	t.Helper()
	repo := meteringmemory.NewSnapshotRepository()
	err := repo.AppendSnapshots(context.Background(), []metering.Snapshot{
		{NozzleID: "n-1", Timestamp: mustTime(t, "2025-01-01T23:40:00Z"), InitialReading: 90, FinalReading: 100},
		{NozzleID: "n-1", Timestamp: mustTime(t, "2025-01-02T00:05:00Z"), InitialReading: 100, FinalReading: 112.5},
		{NozzleID: "n-2", Timestamp: mustTime(t, "2025-01-01T23:40:00Z"), InitialReading: 0, FinalReading: 10},
		{NozzleID: "n-2", Timestamp: mustTime(t, "2025-01-02T00:05:00Z"), InitialReading: 10, FinalReading: 14},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo
}

func TestService_ReconcileAcrossMidnight(t *testing.T) {
	events := mapEvents{
		"2025-01-01": {{At: mustTime(t, "2025-01-01T23:50:00Z"), Kind: reconciliation.BoundaryOpen}},
		"2025-01-02": {{At: mustTime(t, "2025-01-02T00:10:00Z"), Kind: reconciliation.BoundaryClose}},
	}
	service, err := NewService(events, seedSnapshots(t), staticCatalog{}, fixedClock{now: mustTime(t, "2025-01-02T09:00:00Z")},
		WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := service.Reconcile(context.Background(), mustTime(t, "2025-01-01T00:00:00Z"), reconciliation.ModeFinal)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.Window.Open.Equal(mustTime(t, "2025-01-01T23:50:00Z")) || !report.Window.Close.Equal(mustTime(t, "2025-01-02T00:10:00Z")) {
		t.Fatalf("unexpected window %+v", report.Window)
	}
	group := report.ByPump["Surtidor 1"]
	if len(group.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(group.Rows))
	}
	if report.GrandTotal.Volume != 16.5 || !report.GrandTotal.Revenue.Equal(decimal.RequireFromString("33")) {
		t.Fatalf("unexpected grand total %+v", report.GrandTotal)
	}
}

func TestService_ReaderFailureIsIsolated(t *testing.T) {
	events := mapEvents{
		"2025-01-01": {
			{At: mustTime(t, "2025-01-01T23:50:00Z"), Kind: reconciliation.BoundaryOpen},
			{At: mustTime(t, "2025-01-02T00:10:00Z"), Kind: reconciliation.BoundaryClose},
		},
	}
	reader := &failingReader{SnapshotReader: seedSnapshots(t), failNozzle: "n-2"}
	service, err := NewService(events, reader, staticCatalog{}, nil,
		WithLogger(logging.Discard()), WithLookback(2*time.Hour))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := service.Reconcile(context.Background(), mustTime(t, "2025-01-01T00:00:00Z"), reconciliation.ModeFinal)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.Anomalies) != 1 || report.Anomalies[0].Kind != reconciliation.AnomalySnapshotReadFailed || report.Anomalies[0].NozzleID != "n-2" {
		t.Fatalf("unexpected anomalies %+v", report.Anomalies)
	}
	if report.GrandTotal.Volume != 12.5 {
		t.Fatalf("failed nozzle must not affect the others, got %f", report.GrandTotal.Volume)
	}
	wantFrom := mustTime(t, "2025-01-01T21:50:00Z")
	for _, from := range reader.calls {
		if !from.Equal(wantFrom) {
			t.Fatalf("expected lookback start %s, got %s", wantFrom, from)
		}
	}
}

func TestService_UnresolvedWindow(t *testing.T) {
	events := mapEvents{
		"2025-01-01": {{At: mustTime(t, "2025-01-01T08:00:00Z"), Kind: reconciliation.BoundaryOpen}},
	}
	service, err := NewService(events, seedSnapshots(t), staticCatalog{}, fixedClock{now: mustTime(t, "2025-01-01T12:00:00Z")},
		WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := service.Reconcile(context.Background(), mustTime(t, "2025-01-01T00:00:00Z"), reconciliation.ModeFinal); !errors.Is(err, reconciliation.ErrWindowUnresolved) {
		t.Fatalf("expected ErrWindowUnresolved, got %v", err)
	}

	report, err := service.Reconcile(context.Background(), mustTime(t, "2025-01-01T00:00:00Z"), reconciliation.ModeLive)
	if err != nil {
		t.Fatalf("live reconcile: %v", err)
	}
	if !report.Window.Live || !report.Window.Close.Equal(mustTime(t, "2025-01-01T12:00:00Z")) {
		t.Fatalf("expected a live window closing at now, got %+v", report.Window)
	}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(nil, seedSnapshots(t), staticCatalog{}, nil); err == nil {
		t.Fatalf("expected error for nil event source")
	}
	if _, err := NewService(mapEvents{}, nil, staticCatalog{}, nil); err == nil {
		t.Fatalf("expected error for nil snapshot reader")
	}
	if _, err := NewService(mapEvents{}, seedSnapshots(t), nil, nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}
