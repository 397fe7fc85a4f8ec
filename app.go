package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"fuelsite-cloud/internal/audit"
	cashboxapp "fuelsite-cloud/internal/cashbox/application"
	cashboxrepo "fuelsite-cloud/internal/cashbox/infrastructure/postgres"
	cashboxinterfaces "fuelsite-cloud/internal/cashbox/interfaces"
	catalog "fuelsite-cloud/internal/catalog/domain"
	catalogrepo "fuelsite-cloud/internal/catalog/infrastructure/postgres"
	"fuelsite-cloud/internal/catalog/infrastructure/yamlfile"
	"fuelsite-cloud/internal/eventing"
	eventingrepo "fuelsite-cloud/internal/eventing/infrastructure/postgres"
	meteringrepo "fuelsite-cloud/internal/metering/infrastructure/postgres"
	reconadapters "fuelsite-cloud/internal/reconciliation/adapters/cashbox"
	reconapp "fuelsite-cloud/internal/reconciliation/application"
	"fuelsite-cloud/migrations"
)

// app holds the wired services shared by the commands.
type app struct {
	db             *sql.DB
	lifecycle      *cashboxapp.LifecycleService
	reconciliation *reconapp.Service
	audit          *audit.Repository
	dispatcher     *eventing.Dispatcher
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func newApp(ctx context.Context, cfg config, logger logrus.FieldLogger) (*app, error) {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := migrations.Up(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	outbox := eventingrepo.NewOutboxStore(db)
	dispatcher, err := eventing.NewDispatcher(outbox, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := cashboxinterfaces.SubscribeRelay(dispatcher, cashboxinterfaces.NewLoggingPublisher(logger)); err != nil {
		_ = db.Close()
		return nil, err
	}

	sessions := cashboxrepo.NewSessionRepository(db)
	lifecycle, err := cashboxapp.NewLifecycleService(
		sessions,
		cashboxapp.WithPublisher(cashboxinterfaces.NewOutboxPublisher(eventing.NewPublisher(outbox))),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var catalogReader catalog.Reader = catalogrepo.NewCatalogRepository(db)
	if cfg.CatalogFile != "" {
		fileCatalog, err := yamlfile.Load(cfg.CatalogFile)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		catalogReader = fileCatalog
	}

	events, err := reconadapters.NewEventSource(sessions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	reconciliation, err := reconapp.NewService(
		events,
		meteringrepo.NewSnapshotRepository(db),
		catalogReader,
		systemClock{},
		reconapp.WithLookback(cfg.SnapshotLookback),
		reconapp.WithLogger(logger),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		db:             db,
		lifecycle:      lifecycle,
		reconciliation: reconciliation,
		audit:          audit.NewRepository(db),
		dispatcher:     dispatcher,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
