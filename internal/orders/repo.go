package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
	"github.com/ariefcatur/go-commerce.git/internal/catalog"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, user_id, status, payment_status,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
	shipping_address, billing_address,
	COALESCE(payment_method,''), COALESCE(payment_reference,''),
	COALESCE(customer_notes,''), COALESCE(admin_notes,''),
	created_at, updated_at, shipped_at, delivered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PayStatus,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
		&o.ShippingAddress, &o.BillingAddress,
		&o.PaymentMethod, &o.PaymentReference,
		&o.CustomerNotes, &o.AdminNotes,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, apperr.ErrNotFound
	}
	return o, err
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_sku, product_price,
		       quantity, total_price, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.ProductSKU, &it.ProductPrice, &it.Quantity, &it.TotalPrice, &it.CreatedAt); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return o, err
	}
	return o, r.loadItems(ctx, &o)
}

// GetForUser scopes the lookup to the owner; admins go through Get.
func (r *Repo) GetForUser(ctx context.Context, id, userID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return o, err
	}
	return o, r.loadItems(ctx, &o)
}

func (r *Repo) GetByPaymentRef(ctx context.Context, ref string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE payment_reference=$1`, ref))
	if err != nil {
		return o, err
	}
	return o, r.loadItems(ctx, &o)
}

type Filter struct {
	UserID        string // empty on the admin listing
	Status        Status
	PaymentStatus PaymentStatus
	OrderNumber   string // substring match
	Page          int
	PerPage       int
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Order, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	where := " WHERE 1=1"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(cond, len(args))
	}
	if f.UserID != "" {
		add(" AND user_id=$%d", f.UserID)
	}
	if f.Status != "" {
		add(" AND status=$%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add(" AND payment_status=$%d", f.PaymentStatus)
	}
	if f.OrderNumber != "" {
		add(" AND order_number ILIKE $%d", "%"+f.OrderNumber+"%")
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q := fmt.Sprintf(`SELECT `+orderCols+` FROM orders`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// Cancel moves a pending/confirmed order to cancelled and restores tracked
// inventory, all in one transaction. userID scopes to the owner.
func (r *Repo) Cancel(ctx context.Context, orderID, userID string) (Order, []ItemQty, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE`,
		orderID, userID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, apperr.ErrNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}
	if status != StatusPending && status != StatusConfirmed {
		return Order{}, nil, &apperr.InvalidTransitionError{From: string(status), To: string(StatusCancelled)}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, StatusCancelled); err != nil {
		return Order{}, nil, err
	}

	restored, err := restoreItemsTx(ctx, tx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}

	o, err := r.Get(ctx, orderID)
	return o, restored, err
}

// AdminSetStatus is the operator override: any target status is accepted.
// Side effects key off the transition: entering shipped/delivered stamps
// the timestamp, entering cancelled restores inventory.
func (r *Repo) AdminSetStatus(ctx context.Context, orderID string, newStatus Status, adminNotes string) (Order, Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, "", apperr.ErrNotFound
	}
	if err != nil {
		return Order{}, "", err
	}

	set := `status=$2, updated_at=now()`
	if newStatus == StatusShipped && old != StatusShipped {
		set += `, shipped_at=now()`
	}
	if newStatus == StatusDelivered && old != StatusDelivered {
		set += `, delivered_at=now()`
	}
	args := []any{orderID, newStatus}
	if adminNotes != "" {
		args = append(args, adminNotes)
		set += fmt.Sprintf(`, admin_notes=$%d`, len(args))
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET `+set+` WHERE id=$1`, args...); err != nil {
		return Order{}, "", err
	}

	if newStatus == StatusCancelled && old != StatusCancelled {
		if _, err := restoreItemsTx(ctx, tx, orderID); err != nil {
			return Order{}, "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, "", err
	}

	o, err := r.Get(ctx, orderID)
	return o, old, err
}

func restoreItemsTx(ctx context.Context, tx pgx.Tx, orderID string) ([]ItemQty, error) {
	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemQty
	for rows.Next() {
		var it ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := catalog.RestoreInventoryTx(ctx, tx, it.ProductID, it.Qty); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *Repo) SetPaymentReference(ctx context.Context, orderID, ref string) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET payment_reference=$2, updated_at=now() WHERE id=$1`, orderID, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetPaymentStatusByRef updates the order the gateway payment belongs to.
// Setting the same value again is a harmless no-op, which keeps webhook
// redelivery safe.
func (r *Repo) SetPaymentStatusByRef(ctx context.Context, ref string, ps PaymentStatus) (Order, error) {
	var id string
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now()
		WHERE payment_reference=$1
		RETURNING id`, ref, ps).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

type Stats struct {
	TotalOrders       int                   `json:"total_orders"`
	TotalRevenue      decimal.Decimal       `json:"total_revenue"`
	AverageOrderValue decimal.Decimal       `json:"average_order_value"`
	ByStatus          map[Status]int        `json:"status_breakdown"`
	ByPaymentStatus   map[PaymentStatus]int `json:"payment_status_breakdown"`
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		ByStatus:          map[Status]int{},
		ByPaymentStatus:   map[PaymentStatus]int{},
	}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&s.TotalOrders); err != nil {
		return s, err
	}
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount),0), COALESCE(AVG(total_amount),0)
		FROM orders WHERE payment_status=$1`, PaymentPaid).
		Scan(&s.TotalRevenue, &s.AverageOrderValue)
	if err != nil {
		return s, err
	}

	rows, err := r.DB.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return s, err
		}
		s.ByStatus[st] = n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	prows, err := r.DB.Query(ctx, `SELECT payment_status, COUNT(*) FROM orders GROUP BY payment_status`)
	if err != nil {
		return s, err
	}
	defer prows.Close()
	for prows.Next() {
		var ps PaymentStatus
		var n int
		if err := prows.Scan(&ps, &n); err != nil {
			return s, err
		}
		s.ByPaymentStatus[ps] = n
	}
	return s, prows.Err()
}
