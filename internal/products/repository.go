package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/platform/db"
	"github.com/scentstock/scentstock/internal/shared"
)

const productColumns = `id, tag, product_code, name, category, unit, current_stock, min_stock_level, supplier, supplier_code,
unit_per_box, stock_boxes, shopify_skus, incoming_orders, created_at, updated_at`

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("products repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

// List returns live products ordered by tag.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR product_code ILIKE $%d OR tag ILIKE $%d)", n, n, n))
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY tag, id`
	return r.query(ctx, query, args...)
}

// ListLowStock returns live products whose stock is under their minimum.
func (r *Repository) ListLowStock(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products
WHERE deleted_at IS NULL AND current_stock < min_stock_level ORDER BY tag, id`)
}

// Get returns a single live product.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanProduct(row, id)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanProduct(row pgx.Row, id string) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Tag, &p.ProductCode, &p.Name, &p.Category, &p.Unit, &p.CurrentStock, &p.MinStockLevel,
		&p.Supplier, &p.SupplierCode, &p.UnitPerBox, &p.StockBoxes, &p.ShopifySKUs, &p.IncomingOrders, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %s", shared.ErrNotFound, id)
		}
		return Product{}, err
	}
	if p.ShopifySKUs == nil {
		p.ShopifySKUs = SKUMap{}
	}
	if p.IncomingOrders == nil {
		p.IncomingOrders = []IncomingOrder{}
	}
	return p, nil
}

func (r *txRepository) NextSequence(ctx context.Context, category Category) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO product_sequences (category, last_value)
VALUES ($1, COALESCE((SELECT MAX(CAST(substring(id FROM '[0-9]+$') AS BIGINT)) FROM products WHERE category = $1), 0) + 1)
ON CONFLICT (category) DO UPDATE SET last_value = product_sequences.last_value + 1
RETURNING last_value`, string(category)).Scan(&seq)
	return seq, err
}

func (r *txRepository) Insert(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, tag, product_code, name, category, unit, current_stock, min_stock_level,
supplier, supplier_code, unit_per_box, stock_boxes, shopify_skus, incoming_orders, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())`,
		p.ID, p.Tag, p.ProductCode, p.Name, string(p.Category), p.Unit, p.CurrentStock, p.MinStockLevel,
		p.Supplier, p.SupplierCode, p.UnitPerBox, p.StockBoxes, p.ShopifySKUs, p.IncomingOrders)
	return mapUniqueViolation(err)
}

func (r *txRepository) GetForUpdate(ctx context.Context, id string) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanProduct(row, id)
}

func (r *txRepository) Update(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET tag = $2, product_code = $3, name = $4, category = $5, unit = $6,
min_stock_level = $7, supplier = $8, supplier_code = $9, unit_per_box = $10, stock_boxes = $11, shopify_skus = $12, updated_at = NOW()
WHERE id = $1`,
		p.ID, p.Tag, p.ProductCode, p.Name, string(p.Category), p.Unit, p.MinStockLevel, p.Supplier, p.SupplierCode,
		p.UnitPerBox, p.StockBoxes, p.ShopifySKUs)
	return err
}

func (r *txRepository) ReplaceSKUs(ctx context.Context, productID string, skus SKUMap) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM product_skus WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, t := range skus.Types() {
		if _, err := r.tx.Exec(ctx, `INSERT INTO product_skus (sku, sku_type, product_id) VALUES ($1, $2, $3)`, skus[t], string(t), productID); err != nil {
			if mapped := mapUniqueViolation(err); errors.Is(mapped, shared.ErrConflict) {
				return fmt.Errorf("%w: SKU %s is already assigned", shared.ErrConflict, skus[t])
			}
			return err
		}
	}
	_, err := r.tx.Exec(ctx, `UPDATE products SET shopify_skus = $2 WHERE id = $1`, productID, skus)
	return err
}

func (r *txRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM product_skus WHERE product_id = $1`, id); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE products SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *txRepository) SetIncomingOrders(ctx context.Context, id string, orders []IncomingOrder) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET incoming_orders = $2, updated_at = NOW() WHERE id = $1`, id, orders)
	return err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.Detail)
	}
	return err
}
