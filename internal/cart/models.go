package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a cart line. Price is the snapshot taken when the product was
// added; the Product* fields are joined from the live catalog row and may
// disagree with the snapshot until Reconcile runs.
type Item struct {
	ID        string          `json:"id"`
	CartID    string          `json:"-"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	ProductName       string          `json:"product_name"`
	ProductSKU        string          `json:"product_sku"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	ProductActive     bool            `json:"-"`
	TrackInventory    bool            `json:"-"`
	InventoryQuantity int             `json:"-"`
}

func (it *Item) TotalPrice() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it *Item) PriceChanged() bool {
	return !it.Price.Equal(it.CurrentPrice)
}

type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) TotalItems() int {
	n := 0
	for i := range c.Items {
		n += c.Items[i].Quantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range c.Items {
		sum = sum.Add(c.Items[i].TotalPrice())
	}
	return sum
}

// View is the JSON shape handlers return; totals are derived, not stored.
type View struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Items      []Item          `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (c *Cart) ToView() View {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	return View{
		ID:         c.ID,
		UserID:     c.UserID,
		TotalItems: c.TotalItems(),
		Subtotal:   c.Subtotal(),
		Items:      items,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
