package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is snapshotted onto the order as jsonb; later edits to a user's
// address book never touch past orders.
type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type Order struct {
	ID          string        `json:"id"`
	OrderNumber string        `json:"order_number"`
	UserID      string        `json:"user_id"`
	Status      Status        `json:"status"`
	PayStatus   PaymentStatus `json:"payment_status"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`

	ShippingAddress Address `json:"shipping_address"`
	BillingAddress  Address `json:"billing_address"`

	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`

	CustomerNotes string `json:"customer_notes,omitempty"`
	AdminNotes    string `json:"admin_notes,omitempty"`

	Items []OrderItem `json:"items"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// OrderItem is frozen at order time; it is never re-derived from the
// product row.
type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"-"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductSKU   string          `json:"product_sku"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (o *Order) TotalItems() int {
	n := 0
	for i := range o.Items {
		n += o.Items[i].Quantity
	}
	return n
}

func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

func (o *Order) CanBeRefunded() bool {
	return o.PayStatus == PaymentPaid &&
		o.Status != StatusCancelled && o.Status != StatusRefunded
}
