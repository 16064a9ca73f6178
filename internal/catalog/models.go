package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`

	TrackInventory    bool `json:"track_inventory"`
	InventoryQuantity int  `json:"inventory_quantity"`

	IsActive   bool      `json:"is_active"`
	CategoryID string    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InStock is advisory; checkout re-checks under its transaction.
func (p *Product) InStock(qty int) bool {
	if !p.TrackInventory {
		return true
	}
	return p.InventoryQuantity >= qty
}
