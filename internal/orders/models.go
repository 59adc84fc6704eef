package orders

import "time"

// Product is the store's read model of the warehouse catalog, fed by
// warehouse.product-updates events. The warehouse owns the truth.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	Published  bool      `json:"published"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ShippingInfo is snapshotted onto the order at checkout; later catalog
// or profile edits never change where a placed order ships.
type ShippingInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type Order struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	ProductID  string       `json:"product_id"`
	Quantity   int          `json:"quantity"`
	TotalCents int          `json:"total_cents"`
	Shipping   ShippingInfo `json:"shipping"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
