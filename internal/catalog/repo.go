package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce.git/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, sku, name, description, price, track_inventory,
	inventory_quantity, is_active, COALESCE(category_id, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price,
		&p.TrackInventory, &p.InventoryQuantity, &p.IsActive, &p.CategoryID,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, apperr.ErrNotFound
	}
	return p, err
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

func (r *Repo) GetBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE sku=$1`, sku))
}

type Filter struct {
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Page       int
	PerPage    int
}

// ListActive pages through the active catalog, optionally narrowed by
// category and price range.
func (r *Repo) ListActive(ctx context.Context, f Filter) ([]Product, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	where := " WHERE is_active"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(cond, len(args))
	}
	if f.CategoryID != "" {
		add(" AND category_id=$%d", f.CategoryID)
	}
	if f.MinPrice != nil {
		add(" AND price>=$%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(" AND price<=$%d", *f.MaxPrice)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q := fmt.Sprintf(`SELECT `+productCols+` FROM products`+where+
		` ORDER BY sku LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, sku, name, description, price, track_inventory,
		                     inventory_quantity, is_active, category_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''))`,
		p.ID, p.SKU, p.Name, p.Description, p.Price, p.TrackInventory,
		p.InventoryQuantity, p.IsActive, p.CategoryID)
	return err
}

func (r *Repo) Update(ctx context.Context, p *Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET sku=$2, name=$3, description=$4, price=$5, track_inventory=$6,
		    inventory_quantity=$7, is_active=$8, category_id=NULLIF($9,''),
		    updated_at=now()
		WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.Description, p.Price, p.TrackInventory,
		p.InventoryQuantity, p.IsActive, p.CategoryID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO categories(id, name, slug, description)
		VALUES ($1,$2,$3,$4)`,
		c.ID, c.Name, c.Slug, c.Description)
	return err
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, slug, description, created_at
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DecrementInventoryTx takes stock for one product inside the caller's
// transaction. The WHERE guard makes check-then-decrement race free: a
// concurrent checkout that drained stock first leaves RowsAffected()==0.
func DecrementInventoryTx(ctx context.Context, tx pgx.Tx, productID string, qty int) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET inventory_quantity = inventory_quantity - $2, updated_at = now()
		WHERE id = $1 AND track_inventory AND inventory_quantity >= $2`,
		productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// RestoreInventoryTx puts stock back on cancellation. No-op for untracked
// products.
func RestoreInventoryTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET inventory_quantity = inventory_quantity + $2, updated_at = now()
		WHERE id = $1 AND track_inventory`,
		productID, qty)
	return err
}
