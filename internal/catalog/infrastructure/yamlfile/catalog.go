package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	catalog "fuelsite-cloud/internal/catalog/domain"
)

// Catalog is a static catalog loaded from a YAML document.
type Catalog struct {
	nozzles  []catalog.Nozzle
	pumps    []catalog.Pump
	products []catalog.Product
}

type document struct {
	Pumps []struct {
		ID    string `yaml:"id"`
		Label string `yaml:"label"`
	} `yaml:"pumps"`
	Products []struct {
		ID        string `yaml:"id"`
		Label     string `yaml:"label"`
		UnitPrice string `yaml:"unit_price"`
	} `yaml:"products"`
	Nozzles []struct {
		ID        string `yaml:"id"`
		PumpID    string `yaml:"pump_id"`
		ProductID string `yaml:"product_id"`
		Label     string `yaml:"label"`
	} `yaml:"nozzles"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog file: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a catalog document and validates every entry.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}

	out := &Catalog{}
	for _, p := range doc.Pumps {
		if p.ID == "" {
			return nil, errors.New("catalog file: pump without id")
		}
		out.pumps = append(out.pumps, catalog.Pump{ID: p.ID, Label: p.Label})
	}
	for _, p := range doc.Products {
		price, err := decimal.NewFromString(p.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("catalog file: product %q unit_price: %w", p.ID, err)
		}
		product := catalog.Product{ID: p.ID, Label: p.Label, UnitPrice: price}
		if err := product.Validate(); err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
		out.products = append(out.products, product)
	}
	for _, n := range doc.Nozzles {
		nozzle := catalog.Nozzle{ID: n.ID, PumpID: n.PumpID, ProductID: n.ProductID, Label: n.Label}
		if err := nozzle.Validate(); err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
		out.nozzles = append(out.nozzles, nozzle)
	}
	return out, nil
}

func (c *Catalog) ListNozzles(ctx context.Context) ([]catalog.Nozzle, error) {
	_ = ctx
	return append([]catalog.Nozzle(nil), c.nozzles...), nil
}

func (c *Catalog) ListPumps(ctx context.Context) ([]catalog.Pump, error) {
	_ = ctx
	return append([]catalog.Pump(nil), c.pumps...), nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	_ = ctx
	return append([]catalog.Product(nil), c.products...), nil
}
