package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// TxRepository exposes the transactional operations the mutator needs.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, productID string) (StockRow, error)
	UpdateStock(ctx context.Context, productID string, stock decimal.Decimal, boxes int64) error
	InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error)
}

// MetricsRecorder receives committed movement counts.
type MetricsRecorder interface {
	ObserveMovement(direction string, clamped bool)
}

// ChangeNotifier is told after stock changes are committed.
type ChangeNotifier interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates stock mutations and ledger reads.
type Service struct {
	repo     RepositoryPort
	logger   *slog.Logger
	metrics  MetricsRecorder
	notifier ChangeNotifier
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger, metrics MetricsRecorder, notifier ChangeNotifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, metrics: metrics, notifier: notifier}
}

// AdjustStock applies a single movement in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (MovementResult, error) {
	direction, err := ParseDirection(input.Direction)
	if err != nil {
		return MovementResult{}, err
	}
	movement := Movement{
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Direction: direction,
		Note:      input.Note,
		OrderRef:  input.OrderRef,
	}
	if err := validateMovement(movement); err != nil {
		return MovementResult{}, err
	}
	var result MovementResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = ApplyMovement(ctx, tx, movement)
		return err
	})
	if err != nil {
		return MovementResult{}, err
	}
	s.Committed(ctx, result)
	return result, nil
}

// Committed records metrics for movements applied through ApplyMovement by
// another package's transaction and invalidates cached stock views.
func (s *Service) Committed(ctx context.Context, results ...MovementResult) {
	if s == nil {
		return
	}
	for _, res := range results {
		if s.metrics != nil {
			s.metrics.ObserveMovement(string(res.Transaction.Type), res.Clamped)
		}
		if res.Clamped {
			s.logger.Warn("stock removal clamped at zero",
				slog.String("product_id", res.ProductID),
				slog.String("shortfall", res.Shortfall.String()))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Invalidate(ctx); err != nil {
			s.logger.Warn("stock change notification failed", slog.Any("error", err))
		}
	}
}

// ListTransactions returns ledger entries newest first.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Type != "" {
		if _, err := ParseDirection(filter.Type); err != nil {
			return nil, err
		}
	}
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	return s.repo.ListTransactions(ctx, filter)
}

// ApplyMovement locks the product row, computes the new stock, writes it
// back and appends exactly one ledger row, all on tx. Callers own the
// transaction boundary.
func ApplyMovement(ctx context.Context, tx TxRepository, movement Movement) (MovementResult, error) {
	if err := validateMovement(movement); err != nil {
		return MovementResult{}, err
	}
	row, err := tx.GetStockForUpdate(ctx, movement.ProductID)
	if err != nil {
		return MovementResult{}, err
	}

	newStock := row.CurrentStock
	var shortfall decimal.Decimal
	switch movement.Direction {
	case DirectionAdd:
		newStock = row.CurrentStock.Add(movement.Quantity)
	case DirectionRemove:
		newStock = row.CurrentStock.Sub(movement.Quantity)
		if newStock.IsNegative() {
			if !movement.ClampAtZero {
				return MovementResult{}, fmt.Errorf("%w: product %s has %s %s, cannot remove %s",
					shared.ErrInsufficientStock, row.ProductID, row.CurrentStock.String(), row.Unit, movement.Quantity.String())
			}
			shortfall = newStock.Neg()
			newStock = decimal.Zero
		}
	}

	boxes := BoxCount(newStock, row.UnitPerBox)
	if err := tx.UpdateStock(ctx, row.ProductID, newStock, boxes); err != nil {
		return MovementResult{}, err
	}

	notes := movement.Note
	if shortfall.IsPositive() {
		notes = fmt.Sprintf("%s (stock clamped at 0, short by %s %s)", notes, shortfall.String(), row.Unit)
	}
	entry := Transaction{
		ProductID:    row.ProductID,
		ProductCode:  row.ProductCode,
		ProductName:  row.Name,
		Category:     row.Category,
		Type:         movement.Direction,
		Quantity:     movement.Quantity,
		Unit:         row.Unit,
		BalanceAfter: newStock,
		Notes:        notes,
	}
	if movement.OrderRef != "" {
		ref := movement.OrderRef
		entry.ShopifyOrderID = &ref
	}
	entry, err = tx.InsertTransaction(ctx, entry)
	if err != nil {
		return MovementResult{}, err
	}
	return MovementResult{
		ProductID:   row.ProductID,
		NewStock:    newStock,
		StockBoxes:  boxes,
		Clamped:     shortfall.IsPositive(),
		Shortfall:   shortfall,
		Transaction: entry,
	}, nil
}

func validateMovement(m Movement) error {
	if m.ProductID == "" {
		return fmt.Errorf("%w: productId required", shared.ErrInvalidArgument)
	}
	if !m.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	if err := shared.CheckQuantityScale("quantity", m.Quantity); err != nil {
		return err
	}
	if m.Direction != DirectionAdd && m.Direction != DirectionRemove {
		return fmt.Errorf("%w: direction must be add or remove", shared.ErrInvalidArgument)
	}
	return nil
}
