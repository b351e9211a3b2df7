package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of fractional digits every quantity column keeps.
const QuantityScale = 3

// CheckQuantityScale rejects q when storing it would drop fractional digits.
func CheckQuantityScale(field string, q decimal.Decimal) error {
	if !q.Equal(q.Truncate(QuantityScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrInvalidArgument, field, QuantityScale)
	}
	return nil
}
