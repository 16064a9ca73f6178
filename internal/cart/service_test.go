package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/catalog"
)

// fakeStore implements Store in memory, mirroring the accumulate-on-upsert
// behaviour of the SQL repo.
type fakeStore struct {
	cart   Cart
	nextID int
}

func newFakeStore(userID string) *fakeStore {
	return &fakeStore{cart: Cart{ID: "cart-1", UserID: userID}}
}

func (f *fakeStore) GetOrCreate(_ context.Context, _ string) (Cart, error) {
	return f.cart, nil
}

func (f *fakeStore) UpsertItem(_ context.Context, cartID, productID string, qty int, price decimal.Decimal) error {
	for i := range f.cart.Items {
		if f.cart.Items[i].ProductID == productID {
			f.cart.Items[i].Quantity += qty
			return nil
		}
	}
	f.nextID++
	f.cart.Items = append(f.cart.Items, Item{
		ID:        fmt.Sprintf("item-%d", f.nextID),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  qty,
		Price:     price,
	})
	return nil
}

func (f *fakeStore) GetItem(_ context.Context, _, itemID string) (Item, error) {
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			return f.cart.Items[i], nil
		}
	}
	return Item{}, apperr.ErrNotFound
}

func (f *fakeStore) SetItemQuantity(_ context.Context, _, itemID string, qty int) error {
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items[i].Quantity = qty
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *fakeStore) SetItemForReconcile(_ context.Context, _, itemID string, qty int, price decimal.Decimal) error {
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items[i].Quantity = qty
			f.cart.Items[i].Price = price
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *fakeStore) DeleteItem(_ context.Context, _, itemID string) error {
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items = append(f.cart.Items[:i], f.cart.Items[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *fakeStore) Clear(_ context.Context, _ string) error {
	f.cart.Items = nil
	return nil
}

type fakeProducts struct {
	products map[string]catalog.Product
}

func (f *fakeProducts) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, apperr.ErrNotFound
	}
	return p, nil
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newTestService(products ...catalog.Product) (*Service, *fakeStore) {
	m := map[string]catalog.Product{}
	for _, p := range products {
		m[p.ID] = p
	}
	store := newFakeStore("user-1")
	return &Service{Store: store, Products: &fakeProducts{products: m}}, store
}

func TestAddItem_AccumulatesQuantity(t *testing.T) {
	svc, _ := newTestService(catalog.Product{
		ID: "p1", Name: "Widget", Price: price("10.00"),
		IsActive: true, TrackInventory: true, InventoryQuantity: 10,
	})

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.True(t, c.Items[0].Price.Equal(price("10.00")))
}

func TestAddItem_RejectsInactiveProduct(t *testing.T) {
	svc, _ := newTestService(catalog.Product{ID: "p1", IsActive: false})

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 1)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddItem(context.Background(), "user-1", "nope", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddItem_InsufficientInventoryCountsCart(t *testing.T) {
	svc, _ := newTestService(catalog.Product{
		ID: "p1", Name: "Widget", Price: price("10.00"),
		IsActive: true, TrackInventory: true, InventoryQuantity: 5,
	})

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "user-1", "p1", 3)
	var inv *apperr.InsufficientInventoryError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 6, inv.Requested)
	assert.Equal(t, 5, inv.Available)
	assert.Equal(t, 3, inv.InCart)
}

func TestAddItem_UntrackedProductIgnoresStock(t *testing.T) {
	svc, _ := newTestService(catalog.Product{
		ID: "p1", Name: "Download", Price: price("4.99"),
		IsActive: true, TrackInventory: false, InventoryQuantity: 0,
	})

	c, err := svc.AddItem(context.Background(), "user-1", "p1", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, c.TotalItems())
}

func TestUpdateItemQuantity_ZeroRemovesLine(t *testing.T) {
	svc, store := newTestService(catalog.Product{
		ID: "p1", Name: "Widget", Price: price("10.00"),
		IsActive: true, TrackInventory: true, InventoryQuantity: 10,
	})
	_, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)
	itemID := store.cart.Items[0].ID

	c, err := svc.UpdateItemQuantity(context.Background(), "user-1", itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestUpdateItemQuantity_KeepsPriceSnapshot(t *testing.T) {
	svc, store := newTestService(catalog.Product{
		ID: "p1", Name: "Widget", Price: price("10.00"),
		IsActive: true, TrackInventory: true, InventoryQuantity: 10,
	})
	_, err := svc.AddItem(context.Background(), "user-1", "p1", 1)
	require.NoError(t, err)
	itemID := store.cart.Items[0].ID

	// catalog price moves after the add
	prods := svc.Products.(*fakeProducts)
	p := prods.products["p1"]
	p.Price = price("12.00")
	prods.products["p1"] = p

	c, err := svc.UpdateItemQuantity(context.Background(), "user-1", itemID, 4)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.True(t, c.Items[0].Price.Equal(price("10.00")))
}

func TestDiagnose_ReportsWithoutWriting(t *testing.T) {
	svc, store := newTestService()
	store.cart.Items = []Item{{
		ID: "item-1", ProductID: "p1", ProductName: "Widget",
		Quantity: 5, Price: price("10.00"), CurrentPrice: price("12.00"),
		ProductActive: true, TrackInventory: true, InventoryQuantity: 3,
	}}

	issues, err := svc.Diagnose(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Len(t, issues[0].Problems, 2)
	require.NotNil(t, issues[0].AdjustQuantity)
	assert.Equal(t, 3, *issues[0].AdjustQuantity)
	require.NotNil(t, issues[0].AdjustPrice)
	assert.True(t, issues[0].AdjustPrice.Equal(price("12.00")))

	// nothing changed
	assert.Equal(t, 5, store.cart.Items[0].Quantity)
	assert.True(t, store.cart.Items[0].Price.Equal(price("10.00")))
}

func TestReconcile_RepairsDriftedLines(t *testing.T) {
	svc, store := newTestService()
	store.cart.Items = []Item{
		{
			ID: "item-1", ProductID: "p1", ProductName: "Gone",
			Quantity: 1, Price: price("5.00"), CurrentPrice: price("5.00"),
			ProductActive: false,
		},
		{
			ID: "item-2", ProductID: "p2", ProductName: "Short",
			Quantity: 5, Price: price("10.00"), CurrentPrice: price("11.00"),
			ProductActive: true, TrackInventory: true, InventoryQuantity: 2,
		},
		{
			ID: "item-3", ProductID: "p3", ProductName: "Fine",
			Quantity: 1, Price: price("7.00"), CurrentPrice: price("7.00"),
			ProductActive: true, TrackInventory: true, InventoryQuantity: 9,
		},
	}

	issues, adjusted, c, err := svc.Reconcile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, adjusted)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "item-2", c.Items[0].ID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, c.Items[0].Price.Equal(price("11.00")))
	assert.Equal(t, "item-3", c.Items[1].ID)
}

func TestReconcile_CleanCartIsUntouched(t *testing.T) {
	svc, store := newTestService()
	store.cart.Items = []Item{{
		ID: "item-1", ProductID: "p1", ProductName: "Fine",
		Quantity: 2, Price: price("3.00"), CurrentPrice: price("3.00"),
		ProductActive: true, TrackInventory: true, InventoryQuantity: 4,
	}}

	issues, adjusted, c, err := svc.Reconcile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Empty(t, adjusted)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestSubtotal(t *testing.T) {
	c := Cart{Items: []Item{
		{Quantity: 2, Price: price("10.00")},
		{Quantity: 1, Price: price("4.50")},
	}}
	assert.True(t, c.Subtotal().Equal(price("24.50")))
	assert.Equal(t, 3, c.TotalItems())
}
