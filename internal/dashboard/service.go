// Package dashboard serves the stock overview shown on the landing page.
package dashboard

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/platform/cache"
)

// RecentTransactionCount is how many ledger rows the summary carries.
const RecentTransactionCount = 10

// StockValue totals stock per reporting bucket.
type StockValue struct {
	Oils decimal.Decimal `json:"oils"`
}

// Summary is the dashboard payload.
type Summary struct {
	TotalProducts      int                     `json:"totalProducts"`
	LowStockCount      int                     `json:"lowStockCount"`
	TotalStockValue    StockValue              `json:"totalStockValue"`
	RecentTransactions []inventory.Transaction `json:"recentTransactions"`
}

// Counts are the aggregate figures read from the product table.
type Counts struct {
	TotalProducts int
	LowStock      int
	OilsStock     decimal.Decimal
}

// Repository reads product aggregates.
type Repository interface {
	Counts(ctx context.Context) (Counts, error)
}

// TransactionLister reads the newest ledger entries.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error)
}

// Service builds and caches the summary.
type Service struct {
	repo   Repository
	ledger TransactionLister
	cache  *cache.Versioned
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service. A nil cache serves every request from the database.
func NewService(repo Repository, ledger TransactionLister, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, cache: c, logger: logger}
}

// Summary returns the cached summary, building it on a miss. Concurrent
// misses for the same version share one build.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "summary")
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.build(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out Summary
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

// Invalidate drops cached summaries after a committed stock change.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context) (Summary, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.ledger.ListTransactions(ctx, inventory.TransactionFilter{Limit: RecentTransactionCount})
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalProducts:      counts.TotalProducts,
		LowStockCount:      counts.LowStock,
		TotalStockValue:    StockValue{Oils: counts.OilsStock.Round(2)},
		RecentTransactions: recent,
	}, nil
}

var _ inventory.ChangeNotifier = (*Service)(nil)
