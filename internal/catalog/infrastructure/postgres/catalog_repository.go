package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	catalog "fuelsite-cloud/internal/catalog/domain"
)

const (
	defaultNozzlesTable  = "nozzles"
	defaultPumpsTable    = "pumps"
	defaultProductsTable = "products"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repository.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CatalogRepository reads pumps, products and nozzles from Postgres.
type CatalogRepository struct {
	db            DBTX
	nozzlesTable  string
	pumpsTable    string
	productsTable string
}

// CatalogOption configures the repository.
type CatalogOption func(*CatalogRepository)

// WithTables overrides the default table names. Empty values keep the default.
func WithTables(nozzles, pumps, products string) CatalogOption {
	return func(repo *CatalogRepository) {
		if nozzles != "" {
			repo.nozzlesTable = nozzles
		}
		if pumps != "" {
			repo.pumpsTable = pumps
		}
		if products != "" {
			repo.productsTable = products
		}
	}
}

// NewCatalogRepository constructs a repository.
func NewCatalogRepository(db DBTX, opts ...CatalogOption) *CatalogRepository {
	repo := &CatalogRepository{
		db:            db,
		nozzlesTable:  defaultNozzlesTable,
		pumpsTable:    defaultPumpsTable,
		productsTable: defaultProductsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListNozzles returns every nozzle ordered by id.
func (r *CatalogRepository) ListNozzles(ctx context.Context) ([]catalog.Nozzle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, pump_id, product_id, label
FROM %s
ORDER BY id`, r.nozzlesTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog repo: list nozzles: %w", err)
	}
	defer rows.Close()

	var nozzles []catalog.Nozzle
	for rows.Next() {
		var nozzle catalog.Nozzle
		if err := rows.Scan(&nozzle.ID, &nozzle.PumpID, &nozzle.ProductID, &nozzle.Label); err != nil {
			return nil, err
		}
		nozzles = append(nozzles, nozzle)
	}
	return nozzles, rows.Err()
}

// ListPumps returns every pump ordered by id.
func (r *CatalogRepository) ListPumps(ctx context.Context) ([]catalog.Pump, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, label
FROM %s
ORDER BY id`, r.pumpsTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog repo: list pumps: %w", err)
	}
	defer rows.Close()

	var pumps []catalog.Pump
	for rows.Next() {
		var pump catalog.Pump
		if err := rows.Scan(&pump.ID, &pump.Label); err != nil {
			return nil, err
		}
		pumps = append(pumps, pump)
	}
	return pumps, rows.Err()
}

// ListProducts returns every product ordered by id.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, label, unit_price
FROM %s
ORDER BY id`, r.productsTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog repo: list products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var product catalog.Product
		if err := rows.Scan(&product.ID, &product.Label, &product.UnitPrice); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
