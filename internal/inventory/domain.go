package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/shared"
)

// Direction enumerates supported stock movements.
type Direction string

const (
	// DirectionAdd increases stock.
	DirectionAdd Direction = "add"
	// DirectionRemove decreases stock.
	DirectionRemove Direction = "remove"
)

// ParseDirection validates a movement direction.
func ParseDirection(value string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(value))) {
	case DirectionAdd:
		return DirectionAdd, nil
	case DirectionRemove:
		return DirectionRemove, nil
	default:
		return "", fmt.Errorf("%w: direction must be add or remove, got %q", shared.ErrInvalidArgument, value)
	}
}

// StockRow is the slice of a product row the mutator reads and writes.
type StockRow struct {
	ProductID    string
	ProductCode  string
	Name         string
	Category     string
	Unit         string
	CurrentStock decimal.Decimal
	UnitPerBox   decimal.Decimal
	StockBoxes   int64
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID             int64           `json:"id"`
	ProductID      string          `json:"productId"`
	ProductCode    string          `json:"productCode"`
	ProductName    string          `json:"productName"`
	Category       string          `json:"category"`
	Type           Direction       `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Notes          string          `json:"notes"`
	ShopifyOrderID *string         `json:"shopifyOrderId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Movement describes one requested stock mutation.
type Movement struct {
	ProductID string
	Quantity  decimal.Decimal
	Direction Direction
	Note      string
	// OrderRef tags the ledger row with the external order it came from.
	OrderRef string
	// ClampAtZero turns a removal that would go negative into a removal down to zero.
	ClampAtZero bool
}

// MovementResult reports the committed state after a movement.
type MovementResult struct {
	ProductID   string          `json:"productId"`
	NewStock    decimal.Decimal `json:"newStock"`
	StockBoxes  int64           `json:"stockBoxes"`
	Clamped     bool            `json:"clamped,omitempty"`
	Shortfall   decimal.Decimal `json:"shortfall,omitzero"`
	Transaction Transaction     `json:"transaction"`
}

// AdjustInput is the direct API request to move stock.
type AdjustInput struct {
	ProductID string
	Quantity  decimal.Decimal
	Direction string
	Note      string
	OrderRef  string
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	ProductID string
	Type      string
	Category  string
	Limit     int
	Offset    int
}

// BoxCount returns floor(stock / unitPerBox), or 0 when unitPerBox is not positive.
func BoxCount(stock, unitPerBox decimal.Decimal) int64 {
	if !unitPerBox.IsPositive() || stock.IsNegative() {
		return 0
	}
	return stock.Div(unitPerBox).Floor().IntPart()
}
