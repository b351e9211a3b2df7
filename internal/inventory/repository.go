package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/platform/db"
	"github.com/scentstock/scentstock/internal/shared"
)

// Repository persists stock and ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other packages can run
// movements inside their own transaction boundary.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// ListTransactions returns ledger entries filtered and ordered newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	var (
		conds []string
		args  []any
	)
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	query := `SELECT id, product_id, product_code, product_name, category, type, quantity, unit, balance_after, notes, shopify_order_id, created_at
FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Transaction{}
	for rows.Next() {
		var entry Transaction
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.ProductCode, &entry.ProductName, &entry.Category, &entry.Type,
			&entry.Quantity, &entry.Unit, &entry.BalanceAfter, &entry.Notes, &entry.ShopifyOrderID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetStockForUpdate takes the product's row lock, so concurrent movements on the
// same product apply one after another for the rest of the transaction.
func (r *txRepository) GetStockForUpdate(ctx context.Context, productID string) (StockRow, error) {
	var row StockRow
	err := r.tx.QueryRow(ctx, `SELECT id, product_code, name, category, unit, current_stock, unit_per_box, stock_boxes
FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, productID).
		Scan(&row.ProductID, &row.ProductCode, &row.Name, &row.Category, &row.Unit, &row.CurrentStock, &row.UnitPerBox, &row.StockBoxes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRow{}, fmt.Errorf("%w: product %s", shared.ErrNotFound, productID)
		}
		return StockRow{}, err
	}
	return row, nil
}

func (r *txRepository) UpdateStock(ctx context.Context, productID string, stock decimal.Decimal, boxes int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET current_stock = $2, stock_boxes = $3, updated_at = NOW() WHERE id = $1`, productID, stock, boxes)
	return err
}

func (r *txRepository) InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (product_id, product_code, product_name, category, type, quantity, unit, balance_after, notes, shopify_order_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW()) RETURNING id, created_at`,
		entry.ProductID, entry.ProductCode, entry.ProductName, entry.Category, string(entry.Type), entry.Quantity,
		entry.Unit, entry.BalanceAfter, entry.Notes, entry.ShopifyOrderID).Scan(&entry.ID, &entry.CreatedAt)
	return entry, err
}
