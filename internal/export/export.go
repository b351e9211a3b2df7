// Package export produces full catalogue and ledger dumps as JSON or CSV.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
)

// ProductRow is one exported product.
type ProductRow struct {
	ID            string          `json:"id"`
	Tag           string          `json:"tag"`
	ProductCode   string          `json:"productCode"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	Supplier      string          `json:"supplier"`
	ShopifySKUs   products.SKUMap `json:"shopifySkus"`
}

// ProductLister reads the live catalogue.
type ProductLister interface {
	List(ctx context.Context, filter products.ListFilter) ([]products.Product, error)
}

// TransactionLister pages through the ledger newest first.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error)
}

// Service assembles export datasets.
type Service struct {
	products     ProductLister
	transactions TransactionLister
}

// NewService builds Service.
func NewService(products ProductLister, transactions TransactionLister) *Service {
	return &Service{products: products, transactions: transactions}
}

// Products returns every live product ordered by tag.
func (s *Service) Products(ctx context.Context) ([]ProductRow, error) {
	items, err := s.products.List(ctx, products.ListFilter{})
	if err != nil {
		return nil, err
	}
	rows := make([]ProductRow, 0, len(items))
	for _, p := range items {
		rows = append(rows, ProductRow{
			ID:            p.ID,
			Tag:           p.Tag,
			ProductCode:   p.ProductCode,
			Name:          p.Name,
			Category:      string(p.Category),
			Unit:          p.Unit,
			CurrentStock:  p.CurrentStock,
			MinStockLevel: p.MinStockLevel,
			Supplier:      p.Supplier,
			ShopifySKUs:   p.ShopifySKUs,
		})
	}
	return rows, nil
}

// Transactions returns the whole ledger newest first.
func (s *Service) Transactions(ctx context.Context) ([]inventory.Transaction, error) {
	all := make([]inventory.Transaction, 0)
	for offset := 0; ; offset += shared.MaxPageLimit {
		page, err := s.transactions.ListTransactions(ctx, inventory.TransactionFilter{Limit: shared.MaxPageLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < shared.MaxPageLimit {
			return all, nil
		}
	}
}

// WriteProductsCSV serialises products with one column per SKU type.
func WriteProductsCSV(w io.Writer, rows []ProductRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	skuTypes := []products.SKUType{
		products.SKUCartridge, products.SKUOneLitre, products.SKUHalfLitre, products.SKUPro,
		products.SKUCarDiffuser, products.SKURawMaterial, products.SKUMachineSpare,
	}
	header := []string{"ID", "Tag", "Product Code", "Name", "Category", "Unit", "Current Stock", "Min Stock Level", "Supplier"}
	for _, t := range skuTypes {
		header = append(header, string(t))
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.Tag,
			row.ProductCode,
			row.Name,
			row.Category,
			row.Unit,
			row.CurrentStock.String(),
			row.MinStockLevel.String(),
			row.Supplier,
		}
		for _, t := range skuTypes {
			record = append(record, row.ShopifySKUs[t])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTransactionsCSV serialises ledger entries.
func WriteTransactionsCSV(w io.Writer, rows []inventory.Transaction) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"ID", "Date", "Product ID", "Product Code", "Product Name", "Category", "Type", "Quantity", "Unit", "Balance After", "Notes", "Shopify Order"}); err != nil {
		return err
	}
	for _, tx := range rows {
		order := ""
		if tx.ShopifyOrderID != nil {
			order = *tx.ShopifyOrderID
		}
		if err := writer.Write([]string{
			strconv.FormatInt(tx.ID, 10),
			tx.CreatedAt.UTC().Format(time.RFC3339),
			tx.ProductID,
			tx.ProductCode,
			tx.ProductName,
			tx.Category,
			string(tx.Type),
			tx.Quantity.String(),
			tx.Unit,
			tx.BalanceAfter.String(),
			sanitizeCell(tx.Notes),
			order,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// sanitizeCell keeps spreadsheet apps from evaluating free text as formulas.
func sanitizeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		return "'" + v
	}
	return v
}
