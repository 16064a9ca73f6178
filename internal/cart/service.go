package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/catalog"
)

// Store is what the service needs from persistence; *Repo satisfies it.
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (Cart, error)
	UpsertItem(ctx context.Context, cartID, productID string, qty int, price decimal.Decimal) error
	GetItem(ctx context.Context, cartID, itemID string) (Item, error)
	SetItemQuantity(ctx context.Context, cartID, itemID string, qty int) error
	SetItemForReconcile(ctx context.Context, cartID, itemID string, qty int, price decimal.Decimal) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
	Clear(ctx context.Context, cartID string) error
}

type ProductStore interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Service struct {
	Store    Store
	Products ProductStore
}

func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	return s.Store.GetOrCreate(ctx, userID)
}

// AddItem accumulates quantity onto an existing line or inserts a new one
// with the product's current price as the snapshot. The stock check here is
// advisory; checkout re-checks under its transaction.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (Cart, error) {
	if qty < 1 {
		return Cart{}, apperr.Validation("quantity", "must be at least 1")
	}
	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	if !p.IsActive {
		return Cart{}, apperr.ErrUnavailable
	}

	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	inCart := 0
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			inCart = c.Items[i].Quantity
			break
		}
	}
	if p.TrackInventory && inCart+qty > p.InventoryQuantity {
		return Cart{}, &apperr.InsufficientInventoryError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   inCart + qty,
			Available:   p.InventoryQuantity,
			InCart:      inCart,
		}
	}

	if err := s.Store.UpsertItem(ctx, c.ID, productID, qty, p.Price); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreate(ctx, userID)
}

// UpdateItemQuantity overwrites the line's quantity. Zero deletes the line.
// The stored price snapshot is never touched here.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, itemID string, qty int) (Cart, error) {
	if qty < 0 {
		return Cart{}, apperr.Validation("quantity", "must not be negative")
	}
	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	item, err := s.Store.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return Cart{}, err
	}

	if qty == 0 {
		if err := s.Store.DeleteItem(ctx, c.ID, itemID); err != nil {
			return Cart{}, err
		}
		return s.Store.GetOrCreate(ctx, userID)
	}

	p, err := s.Products.Get(ctx, item.ProductID)
	if err != nil {
		return Cart{}, err
	}
	if p.TrackInventory && qty > p.InventoryQuantity {
		return Cart{}, &apperr.InsufficientInventoryError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   qty,
			Available:   p.InventoryQuantity,
			InCart:      item.Quantity,
		}
	}
	if err := s.Store.SetItemQuantity(ctx, c.ID, itemID, qty); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreate(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.DeleteItem(ctx, c.ID, itemID); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreate(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) (Cart, error) {
	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.Clear(ctx, c.ID); err != nil {
		return Cart{}, err
	}
	return s.Store.GetOrCreate(ctx, userID)
}

// Issue describes one problem found on a cart line plus the repair
// Reconcile would apply. AdjustQuantity==0 means the line gets removed.
type Issue struct {
	ItemID         string           `json:"item_id"`
	ProductName    string           `json:"product_name"`
	Problems       []string         `json:"issues"`
	AdjustQuantity *int             `json:"adjust_quantity,omitempty"`
	AdjustPrice    *decimal.Decimal `json:"adjust_price,omitempty"`
}

// Diagnose is a pure read: it reports stale lines without writing anything.
func (s *Service) Diagnose(ctx context.Context, userID string) ([]Issue, error) {
	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return diagnoseItems(c.Items), nil
}

func diagnoseItems(items []Item) []Issue {
	var issues []Issue
	for i := range items {
		it := &items[i]
		var iss Issue
		iss.ItemID = it.ID
		iss.ProductName = it.ProductName

		if !it.ProductActive {
			iss.Problems = append(iss.Problems, "product is no longer available")
			zero := 0
			iss.AdjustQuantity = &zero
		} else {
			if it.TrackInventory && it.InventoryQuantity < it.Quantity {
				avail := it.InventoryQuantity
				if avail > 0 {
					iss.Problems = append(iss.Problems, fmt.Sprintf("only %d items available", avail))
				} else {
					iss.Problems = append(iss.Problems, "product is out of stock")
				}
				iss.AdjustQuantity = &avail
			}
			if it.PriceChanged() {
				iss.Problems = append(iss.Problems,
					fmt.Sprintf("price changed from %s to %s", it.Price, it.CurrentPrice))
				p := it.CurrentPrice
				iss.AdjustPrice = &p
			}
		}

		if len(iss.Problems) > 0 {
			issues = append(issues, iss)
		}
	}
	return issues
}

// Reconcile applies the repairs Diagnose suggests: stale quantities get
// clamped to available stock (removing the line at zero) and drifted price
// snapshots get refreshed. Returns the issues, the ids of adjusted lines,
// and the cart after repair.
func (s *Service) Reconcile(ctx context.Context, userID string) ([]Issue, []string, Cart, error) {
	c, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, Cart{}, err
	}
	issues := diagnoseItems(c.Items)

	var adjusted []string
	for _, iss := range issues {
		switch {
		case iss.AdjustQuantity != nil && *iss.AdjustQuantity == 0:
			if err := s.Store.DeleteItem(ctx, c.ID, iss.ItemID); err != nil {
				return nil, nil, Cart{}, err
			}
			adjusted = append(adjusted, iss.ItemID)
		case iss.AdjustQuantity != nil || iss.AdjustPrice != nil:
			item, err := s.Store.GetItem(ctx, c.ID, iss.ItemID)
			if err != nil {
				return nil, nil, Cart{}, err
			}
			qty := item.Quantity
			if iss.AdjustQuantity != nil {
				qty = *iss.AdjustQuantity
			}
			price := item.Price
			if iss.AdjustPrice != nil {
				price = *iss.AdjustPrice
			}
			if err := s.Store.SetItemForReconcile(ctx, c.ID, iss.ItemID, qty, price); err != nil {
				return nil, nil, Cart{}, err
			}
			adjusted = append(adjusted, iss.ItemID)
		}
	}

	fresh, err := s.Store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, Cart{}, err
	}
	return issues, adjusted, fresh, nil
}
