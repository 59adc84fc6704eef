package inventory

import (
	"context"
)

type SeedStock struct {
	WarehouseID string
	ProductID   string
	Quantity    int
}

// Seed inserts demo warehouses, products and stock when absent. Safe to
// run on every startup.
func (r *Repo) Seed(ctx context.Context, warehouses []Warehouse, products []Product, stock []SeedStock) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, w := range warehouses {
		if _, err := tx.Exec(ctx, `
			INSERT INTO warehouses(id, name, address) VALUES ($1,$2,$3)
			ON CONFLICT (id) DO NOTHING`, w.ID, w.Name, w.Address); err != nil {
			return err
		}
	}
	for _, p := range products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products(id, name, price_cents, published) VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO NOTHING`, p.ID, p.Name, p.PriceCents, p.Published); err != nil {
			return err
		}
	}
	for _, s := range stock {
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory(warehouse_id, product_id, quantity) VALUES ($1,$2,$3)
			ON CONFLICT (warehouse_id, product_id) DO NOTHING`, s.WarehouseID, s.ProductID, s.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DefaultSeed mirrors the demo data the store expects to sell.
func DefaultSeed() ([]Warehouse, []Product, []SeedStock) {
	warehouses := []Warehouse{
		{ID: "wh-east", Name: "East Warehouse", Address: "12 Harbour Rd, Eastside"},
		{ID: "wh-north", Name: "North Warehouse", Address: "4 Summit Ave, Northgate"},
		{ID: "wh-west", Name: "West Warehouse", Address: "88 Dock St, Westport"},
	}
	products := []Product{
		{ID: "prod-keyboard", Name: "Mechanical Keyboard", PriceCents: 8900, Published: true},
		{ID: "prod-mouse", Name: "Wireless Mouse", PriceCents: 3500, Published: true},
		{ID: "prod-monitor", Name: "27in Monitor", PriceCents: 24900, Published: true},
	}
	stock := []SeedStock{
		{WarehouseID: "wh-east", ProductID: "prod-keyboard", Quantity: 100},
		{WarehouseID: "wh-north", ProductID: "prod-keyboard", Quantity: 50},
		{WarehouseID: "wh-east", ProductID: "prod-mouse", Quantity: 200},
		{WarehouseID: "wh-west", ProductID: "prod-mouse", Quantity: 80},
		{WarehouseID: "wh-north", ProductID: "prod-monitor", Quantity: 30},
	}
	return warehouses, products, stock
}
