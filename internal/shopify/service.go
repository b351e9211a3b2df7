package shopify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scentstock/scentstock/internal/bom"
	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
)

// Flow names used for idempotency keys and metrics.
const (
	FlowFulfillment = "fulfillment"
	FlowIntake      = "intake"
)

// RepositoryPort runs one line item's work in a transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes what the order handlers need inside one transaction.
type TxRepository interface {
	inventory.TxRepository
	// ClaimKey returns shared.ErrIdempotencyConflict when key was already processed.
	ClaimKey(ctx context.Context, key string) error
	// ResolveSKU finds the single live product owning sku, case-insensitively.
	ResolveSKU(ctx context.Context, sku string) (SKUMatch, error)
	// ResolveComponent finds a live product by exact product code, tag or id.
	ResolveComponent(ctx context.Context, code string) (string, error)
	Components(ctx context.Context, variant string) ([]bom.Component, error)
	AppendIncomingOrder(ctx context.Context, productID string, order products.IncomingOrder) error
}

// MetricsRecorder receives per-line outcomes.
type MetricsRecorder interface {
	ObserveCascadeLine(flow, outcome string)
}

// Service handles fulfilment and intake events.
type Service struct {
	repo    RepositoryPort
	stock   *inventory.Service
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock *inventory.Service, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, metrics: metrics, logger: logger, now: time.Now}
}

var errLineSkipped = errors.New("shopify: line skipped")

// HandleFulfillment decrements stock for every line item of a fulfilled
// order and fans out into the variant's BOM components. Each line commits
// on its own; a failing line never stops the others and committed lines
// are never compensated.
func (s *Service) HandleFulfillment(ctx context.Context, lineItems []LineItem, orderRef string) (Result, error) {
	if lineItems == nil {
		return Result{}, fmt.Errorf("%w: line items required", shared.ErrInvalidArgument)
	}
	result := Result{Success: true, ProcessedOrder: orderRef, Message: "Stock and BOM components debited", Lines: make([]LineResult, 0, len(lineItems))}
	for i, item := range lineItems {
		line := s.fulfillLine(ctx, orderRef, i, item)
		s.observe(FlowFulfillment, line.Outcome)
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func (s *Service) fulfillLine(ctx context.Context, orderRef string, index int, item LineItem) LineResult {
	line := LineResult{Index: index, SKU: item.SKU, Quantity: item.Quantity}
	log := s.logger.With(slog.String("order", orderRef), slog.String("sku", item.SKU), slog.Int("line", index))
	if strings.TrimSpace(item.SKU) == "" || !item.Quantity.IsPositive() {
		line.Outcome, line.Reason = OutcomeSkipped, "missing sku or quantity"
		log.Warn("fulfillment line skipped", slog.String("reason", line.Reason))
		return line
	}

	var moves []inventory.MovementResult
	key := item.claimKey(FlowFulfillment, orderRef, index)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moves = moves[:0]
		line.Components = nil
		if key != "" {
			if err := tx.ClaimKey(ctx, key); err != nil {
				return err
			}
		}
		match, err := tx.ResolveSKU(ctx, item.SKU)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				line.Reason = "sku not found"
				return errLineSkipped
			}
			return err
		}
		line.ProductID = match.ProductID

		skuType := products.ResolveSKUType(match.SKUType, item.SKU)
		volume := skuType.UnitVolume()
		line.Volume = volume
		primary, err := inventory.ApplyMovement(ctx, tx, inventory.Movement{
			ProductID:   match.ProductID,
			Quantity:    volume.Mul(item.Quantity),
			Direction:   inventory.DirectionRemove,
			Note:        fmt.Sprintf("Shopify Order %s - Fulfilled (%sx %sml)", orderRef, item.Quantity.String(), volume.String()),
			OrderRef:    orderRef,
			ClampAtZero: true,
		})
		if err != nil {
			return err
		}
		moves = append(moves, primary)
		line.Clamped = primary.Clamped

		variant := skuType.Variant()
		line.Variant = variant
		if variant == "" {
			return nil
		}
		components, err := tx.Components(ctx, variant)
		if err != nil {
			return err
		}
		for _, c := range components {
			cr := ComponentResult{ComponentCode: c.ComponentCode, Quantity: c.Quantity.Mul(item.Quantity)}
			productID, err := tx.ResolveComponent(ctx, c.ComponentCode)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				cr.Reason = "component not found"
				log.Warn("bom component skipped", slog.String("variant", variant), slog.String("component", c.ComponentCode))
				line.Components = append(line.Components, cr)
				continue
			}
			cr.ProductID = productID
			res, err := inventory.ApplyMovement(ctx, tx, inventory.Movement{
				ProductID:   productID,
				Quantity:    cr.Quantity,
				Direction:   inventory.DirectionRemove,
				Note:        fmt.Sprintf("Shopify Order %s - BOM Component (%sx %s)", orderRef, item.Quantity.String(), variant),
				OrderRef:    orderRef,
				ClampAtZero: true,
			})
			if err != nil {
				return err
			}
			cr.Applied, cr.Clamped = true, res.Clamped
			moves = append(moves, res)
			line.Components = append(line.Components, cr)
		}
		return nil
	})
	switch {
	case err == nil:
		line.Outcome = OutcomeApplied
		s.stock.Committed(ctx, moves...)
		log.Info("fulfillment line applied",
			slog.String("product_id", line.ProductID),
			slog.String("volume", line.Volume.String()),
			slog.Int("components", len(line.Components)))
	case errors.Is(err, errLineSkipped):
		line.Outcome = OutcomeSkipped
		line.Components = nil
		log.Warn("fulfillment line skipped", slog.String("reason", line.Reason))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		line.Outcome, line.Reason = OutcomeDuplicate, "already processed"
		line.ProductID, line.Clamped, line.Variant, line.Components = "", false, "", nil
		log.Info("fulfillment line already processed")
	default:
		line.Outcome, line.Reason = OutcomeFailed, shared.UserSafeMessage(err)
		line.Components = nil
		log.Error("fulfillment line failed", slog.Any("error", err))
	}
	return line
}

// HandleIntake records a created order as Incoming Order entries on the
// matched products without touching stock.
func (s *Service) HandleIntake(ctx context.Context, lineItems []LineItem, orderRef string) (Result, error) {
	if lineItems == nil {
		return Result{}, fmt.Errorf("%w: line items required", shared.ErrInvalidArgument)
	}
	result := Result{Success: true, ProcessedOrder: orderRef, Message: "Incoming order added", Lines: make([]LineResult, 0, len(lineItems))}
	for i, item := range lineItems {
		line := s.intakeLine(ctx, orderRef, i, item)
		s.observe(FlowIntake, line.Outcome)
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func (s *Service) intakeLine(ctx context.Context, orderRef string, index int, item LineItem) LineResult {
	line := LineResult{Index: index, SKU: item.SKU, Quantity: item.Quantity}
	log := s.logger.With(slog.String("order", orderRef), slog.String("sku", item.SKU), slog.Int("line", index))
	if strings.TrimSpace(item.SKU) == "" {
		line.Outcome, line.Reason = OutcomeSkipped, "missing sku"
		return line
	}
	key := item.claimKey(FlowIntake, orderRef, index)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if key != "" {
			if err := tx.ClaimKey(ctx, key); err != nil {
				return err
			}
		}
		match, err := tx.ResolveSKU(ctx, item.SKU)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				line.Reason = "sku not found"
				return errLineSkipped
			}
			return err
		}
		line.ProductID = match.ProductID
		return tx.AppendIncomingOrder(ctx, match.ProductID, products.IncomingOrder{
			OrderNumber: orderRef,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			ReceivedAt:  s.now().UTC(),
		})
	})
	switch {
	case err == nil:
		line.Outcome = OutcomeApplied
		log.Info("incoming order recorded", slog.String("product_id", line.ProductID))
	case errors.Is(err, errLineSkipped):
		line.Outcome = OutcomeSkipped
		log.Warn("intake line skipped", slog.String("reason", line.Reason))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		line.Outcome, line.Reason, line.ProductID = OutcomeDuplicate, "already processed", ""
	default:
		line.Outcome, line.Reason = OutcomeFailed, shared.UserSafeMessage(err)
		log.Error("intake line failed", slog.Any("error", err))
	}
	return line
}

func (s *Service) observe(flow string, outcome Outcome) {
	if s.metrics != nil {
		s.metrics.ObserveCascadeLine(flow, string(outcome))
	}
}
