// Package bom maintains the bill of materials consumed per sold variant.
package bom

import (
	"github.com/shopspring/decimal"
)

// Component is one line of a variant's bill of materials.
type Component struct {
	ID            int64           `json:"-"`
	Variant       string          `json:"-"`
	Seq           int             `json:"seq"`
	ComponentCode string          `json:"componentCode"`
	ComponentName string          `json:"componentName"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// AddInput creates a component.
type AddInput struct {
	Variant       string
	ComponentCode string
	ComponentName string
	Quantity      decimal.Decimal
}

// UpdateInput patches a component; nil fields are unchanged.
type UpdateInput struct {
	ComponentName *string
	Quantity      *decimal.Decimal
}
