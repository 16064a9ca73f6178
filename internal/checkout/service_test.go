package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/cart"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
)

type mockCarts struct {
	cart cart.Cart
	err  error
}

func (m *mockCarts) GetOrCreate(_ context.Context, _ string) (cart.Cart, error) {
	return m.cart, m.err
}

type mockOrderStore struct {
	created *orders.Order
	cartID  string
	err     error
}

func (m *mockOrderStore) CreateOrder(_ context.Context, o *orders.Order, cartID string) error {
	if m.err != nil {
		return m.err
	}
	m.created = o
	m.cartID = cartID
	return nil
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func addr() orders.Address {
	return orders.Address{
		FirstName: "Jo", LastName: "Doe", AddressLine1: "1 Main St",
		City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
	}
}

func validInput() Input {
	return Input{
		ShippingAddress: addr(),
		BillingAddress:  addr(),
		PaymentMethod:   "paypal",
	}
}

func twoWidgetCart() cart.Cart {
	return cart.Cart{
		ID: "cart-1", UserID: "user-1",
		Items: []cart.Item{{
			ID: "item-1", ProductID: "p1", ProductName: "Widget", ProductSKU: "W-1",
			Quantity: 2, Price: dec("10.00"), CurrentPrice: dec("10.00"),
			ProductActive: true, TrackInventory: true, InventoryQuantity: 10,
		}},
	}
}

func newTestService(c cart.Cart) (*Service, *mockOrderStore) {
	store := &mockOrderStore{}
	svc := &Service{
		Carts:       &mockCarts{cart: c},
		Orders:      store,
		TaxRate:     dec("0.15"),
		ShippingFee: dec("10.00"),
	}
	return svc, store
}

func TestCreateOrder_Totals(t *testing.T) {
	svc, store := newTestService(twoWidgetCart())

	o, err := svc.CreateOrder(context.Background(), "user-1", validInput())
	require.NoError(t, err)

	// 20.00 subtotal + 3.00 tax + 10.00 shipping
	assert.True(t, o.Subtotal.Equal(dec("20.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.TaxAmount.Equal(dec("3.00")), "tax %s", o.TaxAmount)
	assert.True(t, o.ShippingAmount.Equal(dec("10.00")))
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, o.TotalAmount.Equal(dec("33.00")), "total %s", o.TotalAmount)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.PaymentPending, o.PayStatus)
	assert.Equal(t, "USD", o.Currency)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, o.OrderNumber)

	require.NotNil(t, store.created)
	assert.Equal(t, "cart-1", store.cartID)
}

func TestCreateOrder_SnapshotsFromCartPrices(t *testing.T) {
	c := twoWidgetCart()
	// catalog price drifted; the snapshot must win
	c.Items[0].CurrentPrice = dec("15.00")
	svc, _ := newTestService(c)

	o, err := svc.CreateOrder(context.Background(), "user-1", validInput())
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	it := o.Items[0]
	assert.Equal(t, "Widget", it.ProductName)
	assert.Equal(t, "W-1", it.ProductSKU)
	assert.True(t, it.ProductPrice.Equal(dec("10.00")))
	assert.True(t, it.TotalPrice.Equal(dec("20.00")))
	assert.True(t, o.Subtotal.Equal(dec("20.00")))
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc, store := newTestService(cart.Cart{ID: "cart-1"})

	_, err := svc.CreateOrder(context.Background(), "user-1", validInput())
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Nil(t, store.created)
}

func TestCreateOrder_InactiveProductFailsBeforeWrite(t *testing.T) {
	c := twoWidgetCart()
	c.Items[0].ProductActive = false
	svc, store := newTestService(c)

	_, err := svc.CreateOrder(context.Background(), "user-1", validInput())
	var vErr *apperr.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Nil(t, store.created)
}

func TestCreateOrder_InsufficientStockFailsBeforeWrite(t *testing.T) {
	c := twoWidgetCart()
	c.Items[0].Quantity = 5
	c.Items[0].InventoryQuantity = 3
	svc, store := newTestService(c)

	_, err := svc.CreateOrder(context.Background(), "user-1", validInput())
	var inv *apperr.InsufficientInventoryError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 3, inv.Available)
	assert.Nil(t, store.created)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newTestService(twoWidgetCart())

	in := validInput()
	in.PaymentMethod = ""
	_, err := svc.CreateOrder(context.Background(), "user-1", in)
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payment_method", vErr.Field)

	in = validInput()
	in.Currency = "DOLLARS"
	_, err = svc.CreateOrder(context.Background(), "user-1", in)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "currency", vErr.Field)

	in = validInput()
	in.ShippingAddress.City = ""
	_, err = svc.CreateOrder(context.Background(), "user-1", in)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shipping_address", vErr.Field)

	in = validInput()
	in.BillingAddress.Country = ""
	_, err = svc.CreateOrder(context.Background(), "user-1", in)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "billing_address", vErr.Field)
}

func TestCreateOrder_DefaultsCurrency(t *testing.T) {
	svc, _ := newTestService(twoWidgetCart())

	in := validInput()
	in.Currency = "eur"
	o, err := svc.CreateOrder(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "eur", o.Currency)

	in.Currency = ""
	o, err = svc.CreateOrder(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "USD", o.Currency)
}
