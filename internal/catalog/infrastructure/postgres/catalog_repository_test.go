package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func TestCatalogRepository_Lists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, pump_id, product_id, label FROM nozzles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pump_id", "product_id", "label"}).
			AddRow("n-1", "p-1", "regular", "M1"))
	mock.ExpectQuery("SELECT id, label FROM pumps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow("p-1", "Surtidor 1"))
	mock.ExpectQuery("SELECT id, label, unit_price FROM products").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "unit_price"}).AddRow("regular", "Regular", "1.2550"))

	repo := NewCatalogRepository(db)
	ctx := context.Background()
	nozzles, err := repo.ListNozzles(ctx)
	if err != nil || len(nozzles) != 1 || nozzles[0].PumpID != "p-1" {
		t.Fatalf("nozzles: %+v err=%v", nozzles, err)
	}
	pumps, err := repo.ListPumps(ctx)
	if err != nil || len(pumps) != 1 || pumps[0].Label != "Surtidor 1" {
		t.Fatalf("pumps: %+v err=%v", pumps, err)
	}
	products, err := repo.ListProducts(ctx)
	if err != nil || len(products) != 1 || !products[0].UnitPrice.Equal(decimal.RequireFromString("1.255")) {
		t.Fatalf("products: %+v err=%v", products, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCatalogRepository_CustomTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectQuery("FROM site_pumps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}))

	repo := NewCatalogRepository(db, WithTables("", "site_pumps", ""))
	pumps, err := repo.ListPumps(context.Background())
	if err != nil || len(pumps) != 0 {
		t.Fatalf("pumps: %+v err=%v", pumps, err)
	}
}
