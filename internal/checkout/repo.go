package checkout

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrder persists the order header, the item snapshots, the inventory
// decrements and the cart wipe as one transaction. Nothing is left behind
// on failure. Order-number collisions abort the whole tx, so we retry with
// a fresh number a few times.
func (r *Repo) CreateOrder(ctx context.Context, o *orders.Order, cartID string) error {
	for attempt := 0; ; attempt++ {
		err := r.createOnce(ctx, o, cartID)
		if err == nil {
			return nil
		}
		if isOrderNumberConflict(err) && attempt < 4 {
			o.OrderNumber = orders.GenerateOrderNumber(time.Now())
			continue
		}
		return err
	}
}

func (r *Repo) createOnce(ctx context.Context, o *orders.Order, cartID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock product rows in id order so two concurrent checkouts never
	// deadlock, and re-check availability under the lock: the service's
	// precondition pass ran outside this tx.
	items := make([]orders.OrderItem, len(o.Items))
	copy(items, o.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, it := range items {
		var (
			name    string
			active  bool
			tracked bool
			stock   int
		)
		err := tx.QueryRow(ctx, `
			SELECT name, is_active, track_inventory, inventory_quantity
			FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).
			Scan(&name, &active, &tracked, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Validation("product", "product "+it.ProductName+" no longer exists")
		}
		if err != nil {
			return err
		}
		if !active {
			return apperr.Validation("product", "product "+name+" is no longer available")
		}
		if tracked && stock < it.Quantity {
			return &apperr.InsufficientInventoryError{
				ProductID:   it.ProductID,
				ProductName: name,
				Requested:   it.Quantity,
				Available:   stock,
			}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, status, payment_status,
			subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
			shipping_address, billing_address, payment_method, customer_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),NULLIF($15,''))`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.PayStatus,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount, o.Currency,
		o.ShippingAddress, o.BillingAddress, o.PaymentMethod, o.CustomerNotes)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, product_name, product_sku,
				product_price, quantity, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, o.ID, it.ProductID, it.ProductName, it.ProductSKU,
			it.ProductPrice, it.Quantity, it.TotalPrice); err != nil {
			return err
		}
	}

	for _, it := range items {
		ok, err := catalog.DecrementInventoryTx(ctx, tx, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		// Rows are locked above, so a miss here means the product is
		// untracked; confirm rather than assume.
		if !ok {
			var tracked bool
			var stock int
			if err := tx.QueryRow(ctx,
				`SELECT track_inventory, inventory_quantity FROM products WHERE id=$1`,
				it.ProductID).Scan(&tracked, &stock); err != nil {
				return err
			}
			if tracked {
				return &apperr.InsufficientInventoryError{
					ProductID:   it.ProductID,
					ProductName: it.ProductName,
					Requested:   it.Quantity,
					Available:   stock,
				}
			}
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == "orders_order_number_key"
}
