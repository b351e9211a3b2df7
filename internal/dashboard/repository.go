package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads aggregates from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Counts returns live product totals in one round trip.
func (r *PGRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.pool.QueryRow(ctx, `SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE current_stock < min_stock_level),
    COALESCE(SUM(current_stock) FILTER (WHERE category = 'OILS'), 0)
FROM products
WHERE deleted_at IS NULL`).Scan(&c.TotalProducts, &c.LowStock, &c.OilsStock)
	return c, err
}
