package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/products"
)

type stubProducts struct {
	items []products.Product
}

func (s stubProducts) List(ctx context.Context, filter products.ListFilter) ([]products.Product, error) {
	return s.items, nil
}

type pagedLedger struct {
	rows  []inventory.Transaction
	pages int
}

func (p *pagedLedger) ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error) {
	p.pages++
	if filter.Offset >= len(p.rows) {
		return nil, nil
	}
	end := min(filter.Offset+filter.Limit, len(p.rows))
	return p.rows[filter.Offset:end], nil
}

func sampleProducts() stubProducts {
	return stubProducts{items: []products.Product{{
		ID:            "OILS_1",
		Tag:           "#OI00001",
		ProductCode:   "OILS_00001",
		Name:          "Lavender, French",
		Category:      products.CategoryOils,
		Unit:          "ml",
		CurrentStock:  decimal.RequireFromString("1250.5"),
		MinStockLevel: decimal.NewFromInt(500),
		Supplier:      "Acme",
		ShopifySKUs:   products.SKUMap{products.SKUCartridge: "SA_CA_00001"},
	}}}
}

func ledgerRows(n int) []inventory.Transaction {
	rows := make([]inventory.Transaction, n)
	ref := "#1001"
	for i := range rows {
		rows[i] = inventory.Transaction{
			ID:             int64(n - i),
			ProductID:      "OILS_1",
			Type:           inventory.DirectionRemove,
			Quantity:       decimal.NewFromInt(400),
			Unit:           "ml",
			BalanceAfter:   decimal.NewFromInt(int64(i * 400)),
			Notes:          "Shopify Order #1001 - Fulfilled (1x 400ml)",
			ShopifyOrderID: &ref,
			CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return rows
}

func TestTransactionsPagesThroughLedger(t *testing.T) {
	ledger := &pagedLedger{rows: ledgerRows(1001)}
	svc := NewService(sampleProducts(), ledger)

	rows, err := svc.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1001)
	require.Equal(t, 3, ledger.pages)
	require.Equal(t, int64(1001), rows[0].ID)
}

func TestWriteProductsCSV(t *testing.T) {
	svc := NewService(sampleProducts(), &pagedLedger{})
	rows, err := svc.Products(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteProductsCSV(&buf, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "SA_CA", records[0][9])
	require.Equal(t, "Lavender, French", records[1][3])
	require.Equal(t, "1250.5", records[1][6])
	require.Equal(t, "SA_CA_00001", records[1][9])
	require.Equal(t, "", records[1][10])
}

func TestWriteTransactionsCSVEscapesFormulas(t *testing.T) {
	rows := ledgerRows(1)
	rows[0].Notes = "=HYPERLINK(\"x\")"

	var buf bytes.Buffer
	require.NoError(t, WriteTransactionsCSV(&buf, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "'=HYPERLINK(\"x\")", records[1][10])
	require.Equal(t, "#1001", records[1][11])
	require.Equal(t, "2026-01-01T00:00:00Z", records[1][1])
}

func TestHandlerFormats(t *testing.T) {
	h := NewHandler(slog.Default(), NewService(sampleProducts(), &pagedLedger{rows: ledgerRows(2)}))
	h.now = func() time.Time { return time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/products", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Equal(t, "OILS_00001", items[0]["productCode"])

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/transactions?format=csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="transactions-20260504.csv"`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, 3, strings.Count(rr.Body.String(), "\n"))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export/products?format=xml", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
