package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scentstock/scentstock/internal/platform/db"
	"github.com/scentstock/scentstock/internal/shared"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists BOM rows in PostgreSQL.
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

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("bom repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// List returns all components, or those of one variant, ordered by variant and seq.
func (r *Repository) List(ctx context.Context, variant string) ([]Component, error) {
	if variant == "" {
		return scanComponents(r.pool.Query(ctx, `SELECT id, variant, seq, component_code, component_name, quantity FROM bom ORDER BY variant, seq`))
	}
	return ListVariant(ctx, r.pool, variant)
}

// ListVariant returns one variant's components in seq order using q.
func ListVariant(ctx context.Context, q Querier, variant string) ([]Component, error) {
	return scanComponents(q.Query(ctx, `SELECT id, variant, seq, component_code, component_name, quantity FROM bom WHERE variant = $1 ORDER BY seq`, variant))
}

func scanComponents(rows pgx.Rows, err error) ([]Component, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Component{}
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ID, &c.Variant, &c.Seq, &c.ComponentCode, &c.ComponentName, &c.Quantity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *txRepository) LockVariant(ctx context.Context, variant string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('bom:' || $1))`, variant)
	return err
}

func (r *txRepository) ListVariant(ctx context.Context, variant string) ([]Component, error) {
	return ListVariant(ctx, r.tx, variant)
}

func (r *txRepository) Insert(ctx context.Context, c Component) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO bom (variant, seq, component_code, component_name, quantity) VALUES ($1,$2,$3,$4,$5)`,
		c.Variant, c.Seq, c.ComponentCode, c.ComponentName, c.Quantity)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: component %s already exists in %s", shared.ErrConflict, c.ComponentCode, c.Variant)
	}
	return err
}

func (r *txRepository) Update(ctx context.Context, c Component) error {
	_, err := r.tx.Exec(ctx, `UPDATE bom SET component_name = $2, quantity = $3 WHERE id = $1`, c.ID, c.ComponentName, c.Quantity)
	return err
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM bom WHERE id = $1`, id)
	return err
}

func (r *txRepository) SetSeq(ctx context.Context, id int64, seq int) error {
	_, err := r.tx.Exec(ctx, `UPDATE bom SET seq = $2 WHERE id = $1`, id, seq)
	return err
}
