package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/platform/cache"
)

type stubRepo struct {
	calls   atomic.Int32
	counts  Counts
	release chan struct{}
}

func (s *stubRepo) Counts(ctx context.Context) (Counts, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.counts, nil
}

type stubLedger struct {
	filter inventory.TransactionFilter
	rows   []inventory.Transaction
}

func (s *stubLedger) ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error) {
	s.filter = filter
	return s.rows, nil
}

func newTestService(t *testing.T, repo *stubRepo) (*Service, *stubLedger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ledger := &stubLedger{rows: []inventory.Transaction{{ID: 2, ProductID: "OILS_1", Type: inventory.DirectionRemove, Quantity: decimal.NewFromInt(400)}}}
	return NewService(repo, ledger, cache.NewVersioned(client, "dashboard", time.Minute), slog.Default()), ledger
}

func TestSummaryBuildsAndCaches(t *testing.T) {
	repo := &stubRepo{counts: Counts{TotalProducts: 12, LowStock: 3, OilsStock: decimal.RequireFromString("15234.5678")}}
	svc, ledger := newTestService(t, repo)
	ctx := context.Background()

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, summary.TotalProducts)
	require.Equal(t, 3, summary.LowStockCount)
	require.Equal(t, "15234.57", summary.TotalStockValue.Oils.String())
	require.Len(t, summary.RecentTransactions, 1)
	require.Equal(t, RecentTransactionCount, ledger.filter.Limit)

	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.calls.Load())

	require.NoError(t, svc.Invalidate(ctx))
	repo.counts.LowStock = 4
	summary, err = svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, summary.LowStockCount)
	require.Equal(t, int32(2), repo.calls.Load())
}

func TestSummaryCollapsesConcurrentMisses(t *testing.T) {
	repo := &stubRepo{counts: Counts{TotalProducts: 1}, release: make(chan struct{})}
	svc, _ := newTestService(t, repo)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := svc.Summary(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1, summary.TotalProducts)
		}()
	}
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.release)
	wg.Wait()
	require.Equal(t, int32(1), repo.calls.Load())
}

func TestSummaryWithoutRedis(t *testing.T) {
	repo := &stubRepo{counts: Counts{TotalProducts: 2}}
	svc := NewService(repo, &stubLedger{}, nil, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalProducts)
	require.NoError(t, svc.Invalidate(context.Background()))
}

func TestHandlerSummary(t *testing.T) {
	repo := &stubRepo{counts: Counts{TotalProducts: 5, OilsStock: decimal.NewFromInt(2500)}}
	svc, _ := newTestService(t, repo)
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	dec := json.NewDecoder(rr.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))
	require.Equal(t, json.Number("5"), body["totalProducts"])
	require.Equal(t, json.Number("2500"), body["totalStockValue"].(map[string]any)["oils"])
}
