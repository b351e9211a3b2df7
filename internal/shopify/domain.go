// Package shopify turns marketplace order events into stock movements and
// talks to the Shopify Admin API.
package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
)

// Webhook topics handled by the receiver.
const (
	TopicOrdersFulfilled    = "orders/fulfilled"
	TopicFulfillmentsCreate = "fulfillments/create"
	TopicOrdersCreate       = "orders/create"
)

// LineItem is one (sku, quantity) pair of an order event.
type LineItem struct {
	ID       json.Number     `json:"id"`
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
	Title    string          `json:"title,omitempty"`
}

// key identifies the line for idempotency: the marketplace line id when
// present, otherwise its position in the payload.
func (l LineItem) key(index int) string {
	if id := l.lineID(); id != "" {
		return id
	}
	return "idx" + strconv.Itoa(index)
}

func (l LineItem) lineID() string {
	if id := strings.TrimSpace(l.ID.String()); id != "" && id != "0" {
		return id
	}
	return ""
}

// claimKey builds the idempotency key for the line. A positional key is only
// stable within a named order, so a line with neither an order reference nor
// its own id gets no key and is never deduplicated.
func (l LineItem) claimKey(flow, orderRef string, index int) string {
	if strings.TrimSpace(orderRef) == "" && l.lineID() == "" {
		return ""
	}
	return flow + ":" + orderRef + ":" + l.key(index)
}

// Order is the decoded part of a webhook payload the handlers need.
type Order struct {
	Ref       string
	LineItems []LineItem
}

type orderPayload struct {
	ID        json.Number     `json:"id"`
	Name      string          `json:"name"`
	LineItems json.RawMessage `json:"line_items"`
}

// DecodeOrder parses a webhook body. The order reference is the payload
// name (e.g. "#1001") falling back to its id. A missing or non-array
// line_items field is rejected.
func DecodeOrder(body []byte) (Order, error) {
	var payload orderPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return Order{}, fmt.Errorf("%w: invalid webhook data", shared.ErrInvalidArgument)
	}
	raw := bytes.TrimSpace(payload.LineItems)
	if len(raw) == 0 || raw[0] != '[' {
		return Order{}, fmt.Errorf("%w: invalid webhook data: line_items must be an array", shared.ErrInvalidArgument)
	}
	var items []LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return Order{}, fmt.Errorf("%w: invalid webhook data: %v", shared.ErrInvalidArgument, err)
	}
	ref := strings.TrimSpace(payload.Name)
	if ref == "" {
		ref = payload.ID.String()
	}
	return Order{Ref: ref, LineItems: items}, nil
}

// Outcome classifies how a line item was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// ComponentResult reports one BOM component decrement.
type ComponentResult struct {
	ComponentCode string          `json:"componentCode"`
	ProductID     string          `json:"productId,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Applied       bool            `json:"applied"`
	Clamped       bool            `json:"clamped,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// LineResult reports how one line item was handled.
type LineResult struct {
	Index      int               `json:"index"`
	SKU        string            `json:"sku"`
	Quantity   decimal.Decimal   `json:"quantity"`
	Outcome    Outcome           `json:"outcome"`
	ProductID  string            `json:"productId,omitempty"`
	Volume     decimal.Decimal   `json:"volume,omitzero"`
	Clamped    bool              `json:"clamped,omitempty"`
	Variant    string            `json:"variant,omitempty"`
	Components []ComponentResult `json:"components,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// Result is returned for every processed order event.
type Result struct {
	Success        bool         `json:"success"`
	ProcessedOrder string       `json:"processedOrder"`
	Message        string       `json:"message,omitempty"`
	Lines          []LineResult `json:"lines"`
}

// SKUMatch is a resolved marketplace SKU.
type SKUMatch struct {
	ProductID string
	SKUType   products.SKUType
}
