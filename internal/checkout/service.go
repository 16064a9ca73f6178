package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/cart"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
)

type Carts interface {
	GetOrCreate(ctx context.Context, userID string) (cart.Cart, error)
}

// OrderStore does the atomic persist; *Repo satisfies it.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *orders.Order, cartID string) error
}

type Service struct {
	Carts       Carts
	Orders      OrderStore
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

type Input struct {
	ShippingAddress orders.Address `json:"shipping_address"`
	BillingAddress  orders.Address `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
	CustomerNotes   string         `json:"customer_notes"`
	Currency        string         `json:"currency"`
}

// CreateOrder converts the user's cart into an order. Item snapshots are
// taken from the cart's price snapshots, not from current product prices.
// The repo re-checks stock under its transaction; the checks here fail
// fast before any write happens.
func (s *Service) CreateOrder(ctx context.Context, userID string, in Input) (orders.Order, error) {
	if err := validateInput(&in); err != nil {
		return orders.Order{}, err
	}

	c, err := s.Carts.GetOrCreate(ctx, userID)
	if err != nil {
		return orders.Order{}, err
	}
	if len(c.Items) == 0 {
		return orders.Order{}, apperr.ErrEmptyCart
	}
	for i := range c.Items {
		it := &c.Items[i]
		if !it.ProductActive {
			return orders.Order{}, apperr.Validation("product",
				"product "+it.ProductName+" is no longer available")
		}
		if it.TrackInventory && it.InventoryQuantity < it.Quantity {
			return orders.Order{}, &apperr.InsufficientInventoryError{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Requested:   it.Quantity,
				Available:   it.InventoryQuantity,
				InCart:      it.Quantity,
			}
		}
	}

	subtotal := c.Subtotal()
	tax := subtotal.Mul(s.TaxRate).Round(2)
	shipping := s.ShippingFee
	discount := decimal.Zero
	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	now := time.Now()
	o := orders.Order{
		ID:              uuid.NewString(),
		OrderNumber:     orders.GenerateOrderNumber(now),
		UserID:          userID,
		Status:          orders.StatusPending,
		PayStatus:       orders.PaymentPending,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingAmount:  shipping,
		DiscountAmount:  discount,
		TotalAmount:     total,
		Currency:        in.Currency,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
		CustomerNotes:   in.CustomerNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range c.Items {
		it := &c.Items[i]
		o.Items = append(o.Items, orders.OrderItem{
			ID:           uuid.NewString(),
			OrderID:      o.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductSKU:   it.ProductSKU,
			ProductPrice: it.Price,
			Quantity:     it.Quantity,
			TotalPrice:   it.TotalPrice(),
			CreatedAt:    now,
		})
	}

	if err := s.Orders.CreateOrder(ctx, &o, c.ID); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func validateInput(in *Input) error {
	if in.PaymentMethod == "" {
		return apperr.Validation("payment_method", "required")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if len(in.Currency) != 3 {
		return apperr.Validation("currency", "must be a 3-letter code")
	}
	if err := requireAddress(&in.ShippingAddress, "shipping_address"); err != nil {
		return err
	}
	return requireAddress(&in.BillingAddress, "billing_address")
}

func requireAddress(a *orders.Address, field string) error {
	switch "" {
	case a.FirstName, a.LastName, a.AddressLine1, a.City, a.State, a.PostalCode, a.Country:
		return apperr.Validation(field, "incomplete address")
	}
	return nil
}
