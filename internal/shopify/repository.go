package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scentstock/scentstock/internal/bom"
	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/platform/db"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
)

const idempotencyModule = "shopify"

// Repository runs order line work against PostgreSQL.
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
		return errors.New("shopify repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

func (r *txRepository) ClaimKey(ctx context.Context, key string) error {
	return shared.ClaimKey(ctx, r.tx, key, idempotencyModule)
}

func (r *txRepository) ResolveSKU(ctx context.Context, sku string) (SKUMatch, error) {
	var match SKUMatch
	err := r.tx.QueryRow(ctx, `SELECT s.product_id, s.sku_type
FROM product_skus s JOIN products p ON p.id = s.product_id
WHERE lower(s.sku) = lower($1) AND p.deleted_at IS NULL`, sku).Scan(&match.ProductID, &match.SKUType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SKUMatch{}, fmt.Errorf("%w: sku %s", shared.ErrNotFound, sku)
		}
		return SKUMatch{}, err
	}
	return match, nil
}

func (r *txRepository) ResolveComponent(ctx context.Context, code string) (string, error) {
	var id string
	err := r.tx.QueryRow(ctx, `SELECT id FROM products
WHERE deleted_at IS NULL AND (product_code = $1 OR tag = $1 OR id = $1)
ORDER BY CASE WHEN product_code = $1 THEN 0 WHEN tag = $1 THEN 1 ELSE 2 END, id
LIMIT 1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: component %s", shared.ErrNotFound, code)
		}
		return "", err
	}
	return id, nil
}

func (r *txRepository) Components(ctx context.Context, variant string) ([]bom.Component, error) {
	return bom.ListVariant(ctx, r.tx, variant)
}

func (r *txRepository) AppendIncomingOrder(ctx context.Context, productID string, order products.IncomingOrder) error {
	entry, err := json.Marshal([]products.IncomingOrder{order})
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `UPDATE products SET incoming_orders = incoming_orders || $2::jsonb, updated_at = NOW() WHERE id = $1`, productID, string(entry))
	return err
}
