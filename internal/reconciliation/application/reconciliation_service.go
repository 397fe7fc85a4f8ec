package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	catalog "fuelsite-cloud/internal/catalog/domain"
	metering "fuelsite-cloud/internal/metering/domain"
	"fuelsite-cloud/internal/observability/metrics"
	"fuelsite-cloud/internal/platform/logging"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
)

// DefaultLookback is how far before the frozen open snapshots are fetched to
// find the closest prior reading.
const DefaultLookback = 24 * time.Hour

// EventSource lists session boundary events filed under one operating day.
type EventSource interface {
	ListEvents(ctx context.Context, day time.Time) ([]reconciliation.Event, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service resolves session windows and reconciles meter readings on demand.
type Service struct {
	events    EventSource
	snapshots metering.SnapshotReader
	catalog   catalog.Reader
	clock     Clock
	lookback  time.Duration
	logger    logrus.FieldLogger
}

// Option configures the service.
type Option func(*Service)

// WithLookback overrides DefaultLookback. Non-positive values are ignored.
func WithLookback(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithLogger sets the logger used for anomaly warnings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs the service.
func NewService(
	events EventSource,
	snapshots metering.SnapshotReader,
	catalogReader catalog.Reader,
	clock Clock,
	opts ...Option,
) (*Service, error) {
	if events == nil {
		return nil, errors.New("reconciliation service: nil event source")
	}
	if snapshots == nil {
		return nil, errors.New("reconciliation service: nil snapshot reader")
	}
	if catalogReader == nil {
		return nil, errors.New("reconciliation service: nil catalog reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		events:    events,
		snapshots: snapshots,
		catalog:   catalogReader,
		clock:     clock,
		lookback:  DefaultLookback,
		logger:    logging.OrDefault(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ResolveWindow loads the events of day and its neighbours and resolves the
// session window.
func (s *Service) ResolveWindow(ctx context.Context, day time.Time, mode reconciliation.ResolveMode) (reconciliation.Window, error) {
	if day.IsZero() {
		return reconciliation.Window{}, errors.New("reconciliation service: zero operating day")
	}
	var events []reconciliation.Event
	for _, d := range reconciliation.EventDays(day) {
		dayEvents, err := s.events.ListEvents(ctx, d)
		if err != nil {
			return reconciliation.Window{}, err
		}
		events = append(events, dayEvents...)
	}
	return reconciliation.ResolveWindow(events, s.clock.Now(), mode)
}

// Reconcile builds the report for day. ErrWindowUnresolved is returned when
// no window can be determined; per-nozzle failures only blank that nozzle.
func (s *Service) Reconcile(ctx context.Context, day time.Time, mode reconciliation.ResolveMode) (reconciliation.Report, error) {
	start := time.Now()
	report, err := s.reconcile(ctx, day, mode)
	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, reconciliation.ErrWindowUnresolved):
		result = metrics.ResultUnresolved
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveReconciliation(mode.String(), result, time.Since(start))
	return report, err
}

func (s *Service) reconcile(ctx context.Context, day time.Time, mode reconciliation.ResolveMode) (reconciliation.Report, error) {
	window, err := s.ResolveWindow(ctx, day, mode)
	if err != nil {
		return reconciliation.Report{}, err
	}
	cat, err := catalog.Load(ctx, s.catalog)
	if err != nil {
		return reconciliation.Report{}, err
	}

	from := window.FrozenOpen().Add(-s.lookback)
	byNozzle := make(map[string][]metering.Snapshot, len(cat.Nozzles))
	var failed []reconciliation.Anomaly
	for _, nozzle := range cat.Nozzles {
		snapshots, err := s.snapshots.SnapshotsForNozzleInRange(ctx, nozzle.ID, from, window.Close)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return reconciliation.Report{}, ctxErr
			}
			failed = append(failed, reconciliation.Anomaly{
				NozzleID: nozzle.ID,
				Kind:     reconciliation.AnomalySnapshotReadFailed,
				Detail:   err.Error(),
			})
			continue
		}
		byNozzle[nozzle.ID] = snapshots
	}

	report := reconciliation.Reconcile(window, cat, byNozzle)
	report.Anomalies = append(report.Anomalies, failed...)
	for _, anomaly := range report.Anomalies {
		s.logAnomaly(day, anomaly)
		metrics.IncMeterAnomaly(anomaly.Kind)
	}
	return report, nil
}

func (s *Service) logAnomaly(day time.Time, anomaly reconciliation.Anomaly) {
	entry := s.logger.WithFields(logrus.Fields{
		"operating_day": day.Format("2006-01-02"),
		"nozzle_id":     anomaly.NozzleID,
		"kind":          anomaly.Kind,
	})
	if anomaly.Opening != nil {
		entry = entry.WithField("opening", *anomaly.Opening)
	}
	if anomaly.Closing != nil {
		entry = entry.WithField("closing", *anomaly.Closing)
	}
	if anomaly.Detail != "" {
		entry = entry.WithField("detail", anomaly.Detail)
	}
	entry.Warn("meter reconciliation anomaly")
}
