package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

// GetOrCreate loads the user's cart, creating the row on first use.
// The unique constraint on user_id makes the create side idempotent.
func (r *Repo) GetOrCreate(ctx context.Context, userID string) (Cart, error) {
	var c Cart
	_, err := r.DB.Exec(ctx, `
		INSERT INTO carts(id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, uuid.NewString(), userID)
	if err != nil {
		return c, err
	}
	err = r.DB.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id=$1`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Items, err = r.loadItems(ctx, c.ID)
	return c, err
}

func (r *Repo) loadItems(ctx context.Context, cartID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price,
		       ci.created_at, ci.updated_at,
		       p.name, p.sku, p.price, p.is_active, p.track_inventory, p.inventory_quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Price,
			&it.CreatedAt, &it.UpdatedAt,
			&it.ProductName, &it.ProductSKU, &it.CurrentPrice,
			&it.ProductActive, &it.TrackInventory, &it.InventoryQuantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpsertItem adds qty to an existing line or inserts a new one with the
// given price snapshot. ON CONFLICT keeps concurrent adds from creating a
// second (cart_id, product_id) row.
func (r *Repo) UpsertItem(ctx context.Context, cartID, productID string, qty int, price decimal.Decimal) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		uuid.NewString(), cartID, productID, qty, price)
	if err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *Repo) GetItem(ctx context.Context, cartID, itemID string) (Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		SELECT id, cart_id, product_id, quantity, price, created_at, updated_at
		FROM cart_items WHERE id=$1 AND cart_id=$2`, itemID, cartID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Price, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return it, apperr.ErrNotFound
	}
	return it, err
}

func (r *Repo) SetItemQuantity(ctx context.Context, cartID, itemID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE id=$1 AND cart_id=$2`, itemID, cartID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return r.touch(ctx, cartID)
}

// SetItemForReconcile overwrites quantity and the price snapshot in one
// statement; only Reconcile uses it.
func (r *Repo) SetItemForReconcile(ctx context.Context, cartID, itemID string, qty int, price decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET quantity=$3, price=$4, updated_at=now()
		WHERE id=$1 AND cart_id=$2`, itemID, cartID, qty, price)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return r.touch(ctx, cartID)
}

func (r *Repo) DeleteItem(ctx context.Context, cartID, itemID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND cart_id=$2`, itemID, cartID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return r.touch(ctx, cartID)
}

func (r *Repo) Clear(ctx context.Context, cartID string) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *Repo) touch(ctx context.Context, cartID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE carts SET updated_at=now() WHERE id=$1`, cartID)
	return err
}
