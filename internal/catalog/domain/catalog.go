package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Pump is a dispenser unit holding one or more nozzles.
type Pump struct {
	ID    string
	Label string
}

// Product is a fuel type with its unit price.
type Product struct {
	ID        string
	Label     string
	UnitPrice decimal.Decimal
}

// Nozzle is a physical dispensing point; it belongs to one pump and delivers one product.
type Nozzle struct {
	ID        string
	PumpID    string
	ProductID string
	Label     string
}

// Validate checks nozzle invariants.
func (n Nozzle) Validate() error {
	if n.ID == "" {
		return errors.New("nozzle: empty id")
	}
	if n.PumpID == "" {
		return errors.New("nozzle: empty pump id")
	}
	if n.ProductID == "" {
		return errors.New("nozzle: empty product id")
	}
	return nil
}

// Validate checks product invariants.
func (p Product) Validate() error {
	if p.ID == "" {
		return errors.New("product: empty id")
	}
	if p.UnitPrice.IsNegative() {
		return errors.New("product: negative unit price")
	}
	return nil
}

// Reader exposes catalog reference data. It is read only.
type Reader interface {
	ListNozzles(ctx context.Context) ([]Nozzle, error)
	ListPumps(ctx context.Context) ([]Pump, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Snapshot is a point-in-time copy of the catalog indexed by id.
type Snapshot struct {
	Nozzles  []Nozzle
	Pumps    map[string]Pump
	Products map[string]Product
}

// Load reads the full catalog from r.
func Load(ctx context.Context, r Reader) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, errors.New("catalog: nil reader")
	}
	nozzles, err := r.ListNozzles(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pumps, err := r.ListPumps(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	products, err := r.ListProducts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Nozzles:  nozzles,
		Pumps:    make(map[string]Pump, len(pumps)),
		Products: make(map[string]Product, len(products)),
	}
	for _, pump := range pumps {
		snap.Pumps[pump.ID] = pump
	}
	for _, product := range products {
		snap.Products[product.ID] = product
	}
	return snap, nil
}
