package products

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/shared"
)

// SKUType identifies a marketplace listing format.
type SKUType string

const (
	SKUCartridge    SKUType = "SA_CA"
	SKUOneLitre     SKUType = "SA_1L"
	SKUCarDiffuser  SKUType = "SA_CDIFF"
	SKUPro          SKUType = "SA_PRO"
	SKUHalfLitre    SKUType = "SA_HF"
	SKURawMaterial  SKUType = "SA_RM"
	SKUMachineSpare SKUType = "SA_MAC"
)

type skuSpec struct {
	volume  int64
	variant bool
}

var skuSpecs = map[SKUType]skuSpec{
	SKUCartridge:    {volume: 400, variant: true},
	SKUOneLitre:     {volume: 1000, variant: true},
	SKUHalfLitre:    {volume: 500, variant: true},
	SKUPro:          {volume: 1000, variant: true},
	SKUCarDiffuser:  {volume: 700, variant: true},
	SKURawMaterial:  {volume: 1},
	SKUMachineSpare: {volume: 1},
}

// scanOrder is the precedence used when inferring a type from a raw SKU string.
var scanOrder = []SKUType{SKUCartridge, SKUOneLitre, SKUHalfLitre, SKUPro, SKUCarDiffuser}

var categorySKUs = map[Category][]SKUType{
	CategoryOils:           {SKUCartridge, SKUOneLitre, SKUCarDiffuser, SKUPro, SKUHalfLitre},
	CategoryRawMaterials:   {SKURawMaterial},
	CategoryMachinesSpares: {SKUMachineSpare},
}

// Known reports whether t is a recognised SKU type.
func (t SKUType) Known() bool {
	_, ok := skuSpecs[t]
	return ok
}

// UnitVolume is the stock consumed by one sold unit of this SKU type
// (millilitres for oils). Unknown types consume 1.
func (t SKUType) UnitVolume() decimal.Decimal {
	if spec, ok := skuSpecs[t]; ok {
		return decimal.NewFromInt(spec.volume)
	}
	return decimal.NewFromInt(1)
}

// Variant returns the BOM variant code for this type, or "" when none applies.
func (t SKUType) Variant() string {
	if spec, ok := skuSpecs[t]; ok && spec.variant {
		return string(t)
	}
	return ""
}

// InferSKUType scans a raw SKU for a known oil format token.
func InferSKUType(sku string) SKUType {
	upper := strings.ToUpper(sku)
	for _, t := range scanOrder {
		if strings.Contains(upper, string(t)) {
			return t
		}
	}
	return ""
}

// ResolveSKUType prefers the type the SKU is indexed under and falls back
// to scanning the SKU text.
func ResolveSKUType(indexed SKUType, sku string) SKUType {
	if indexed.Known() {
		return indexed
	}
	return InferSKUType(sku)
}

// SKUMap maps listing formats to marketplace SKU strings.
type SKUMap map[SKUType]string

// GenerateSKUs derives the default SKU set for a category.
func GenerateSKUs(c Category, number int64) SKUMap {
	types := categorySKUs[c]
	out := make(SKUMap, len(types))
	for _, t := range types {
		out[t] = fmt.Sprintf("%s_%05d", t, number)
	}
	return out
}

// Normalize trims values, drops empty entries and rejects unknown types or
// SKUs repeated within the map.
func (m SKUMap) Normalize() (SKUMap, error) {
	out := make(SKUMap, len(m))
	seen := make(map[string]SKUType, len(m))
	for t, sku := range m {
		key := SKUType(strings.ToUpper(strings.TrimSpace(string(t))))
		if !key.Known() {
			return nil, fmt.Errorf("%w: unknown SKU type %q", shared.ErrInvalidArgument, t)
		}
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		lower := strings.ToLower(sku)
		if other, dup := seen[lower]; dup {
			return nil, fmt.Errorf("%w: SKU %q used for both %s and %s", shared.ErrConflict, sku, other, key)
		}
		seen[lower] = key
		out[key] = sku
	}
	return out, nil
}

// Types returns the map's SKU types in stable order.
func (m SKUMap) Types() []SKUType {
	types := make([]SKUType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
