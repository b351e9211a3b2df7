package products

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/shared"
)

// Category groups products.
type Category string

const (
	CategoryOils           Category = "OILS"
	CategoryRawMaterials   Category = "RAW_MATERIALS"
	CategoryMachinesSpares Category = "MACHINES_SPARES"
)

// ParseCategory normalises and validates a category name.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(value)))
	switch c {
	case CategoryOils, CategoryRawMaterials, CategoryMachinesSpares:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", shared.ErrInvalidArgument, value)
	}
}

// IncomingOrder is a created but not yet fulfilled marketplace order line.
type IncomingOrder struct {
	OrderNumber string          `json:"orderNumber"`
	SKU         string          `json:"sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReceivedAt  time.Time       `json:"receivedAt"`
}

// Product is a stock-keeping item.
type Product struct {
	ID             string          `json:"id"`
	Tag            string          `json:"tag"`
	ProductCode    string          `json:"productCode"`
	Name           string          `json:"name"`
	Category       Category        `json:"category"`
	Unit           string          `json:"unit"`
	CurrentStock   decimal.Decimal `json:"currentStock"`
	MinStockLevel  decimal.Decimal `json:"minStockLevel"`
	Supplier       string          `json:"supplier"`
	SupplierCode   string          `json:"supplier_code"`
	UnitPerBox     decimal.Decimal `json:"unitPerBox"`
	StockBoxes     int64           `json:"stockBoxes"`
	ShopifySKUs    SKUMap          `json:"shopifySkus"`
	IncomingOrders []IncomingOrder `json:"incoming_orders"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsLowStock reports whether stock is under the configured minimum.
func (p Product) IsLowStock() bool {
	return p.CurrentStock.LessThan(p.MinStockLevel)
}

// CreateInput carries fields for a new product. Empty identifiers are generated.
type CreateInput struct {
	Name          string
	Category      string
	ProductCode   string
	Tag           string
	Unit          string
	CurrentStock  decimal.Decimal
	MinStockLevel decimal.Decimal
	Supplier      string
	SupplierCode  string
	UnitPerBox    decimal.Decimal
	ShopifySKUs   SKUMap
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name          *string
	Category      *string
	ProductCode   *string
	Tag           *string
	Unit          *string
	CurrentStock  *decimal.Decimal
	MinStockLevel *decimal.Decimal
	Supplier      *string
	SupplierCode  *string
	UnitPerBox    *decimal.Decimal
	ShopifySKUs   *SKUMap
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category string
	Search   string
}

// FormatID returns the product id for a category sequence number.
func FormatID(c Category, seq int64) string {
	return fmt.Sprintf("%s_%d", c, seq)
}

// FormatTag returns "#" + the first two letters of the category + a 5-digit number.
func FormatTag(c Category, seq int64) string {
	return fmt.Sprintf("#%s%05d", string(c)[:2], seq)
}

// FormatCode returns CATEGORY_00001 style product codes.
func FormatCode(c Category, seq int64) string {
	return fmt.Sprintf("%s_%05d", c, seq)
}

var digitsPattern = regexp.MustCompile(`\d+`)

// SKUNumber picks the number used for generated SKUs: the first digit run of
// the tag when present, otherwise the sequence number.
func SKUNumber(tag string, seq int64) int64 {
	if match := digitsPattern.FindString(tag); match != "" {
		if n, err := strconv.ParseInt(match, 10, 64); err == nil {
			return n
		}
	}
	return seq
}
