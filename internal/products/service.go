package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/inventory"
	"github.com/scentstock/scentstock/internal/shared"
)

// RepositoryPort abstracts product persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	ListLowStock(ctx context.Context) ([]Product, error)
}

// TxRepository exposes the transactional product operations. It embeds the
// inventory port so stock changes go through the ledger in the same transaction.
type TxRepository interface {
	inventory.TxRepository
	NextSequence(ctx context.Context, category Category) (int64, error)
	Insert(ctx context.Context, p Product) error
	GetForUpdate(ctx context.Context, id string) (Product, error)
	Update(ctx context.Context, p Product) error
	ReplaceSKUs(ctx context.Context, productID string, skus SKUMap) error
	SoftDelete(ctx context.Context, id string) error
	SetIncomingOrders(ctx context.Context, id string, orders []IncomingOrder) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SyncEnqueuer schedules marketplace listing creation for new oils.
type SyncEnqueuer interface {
	EnqueueProductSync(ctx context.Context, productID string) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	ShopifySyncEnabled bool
}

// Service coordinates product catalogue operations.
type Service struct {
	repo   RepositoryPort
	stock  *inventory.Service
	audit  AuditPort
	sync   SyncEnqueuer
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock *inventory.Service, audit AuditPort, sync SyncEnqueuer, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, sync: sync, logger: logger, cfg: cfg}
}

// List returns products ordered by tag.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	if filter.Category != "" && !strings.EqualFold(filter.Category, "ALL") {
		c, err := ParseCategory(filter.Category)
		if err != nil {
			return nil, err
		}
		filter.Category = string(c)
	} else {
		filter.Category = ""
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// Get returns a single live product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.repo.Get(ctx, id)
}

// LowStock lists products whose stock is under their minimum level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

// Create registers a product, generating identifiers and SKUs when omitted.
// Initial stock is booked as an opening ledger entry.
func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.TrimSpace(input.Category) == "" {
		return Product{}, fmt.Errorf("%w: name and category are required", shared.ErrInvalidArgument)
	}
	category, err := ParseCategory(input.Category)
	if err != nil {
		return Product{}, err
	}
	if input.CurrentStock.IsNegative() || input.MinStockLevel.IsNegative() {
		return Product{}, fmt.Errorf("%w: stock levels must not be negative", shared.ErrInvalidArgument)
	}
	for field, q := range map[string]decimal.Decimal{
		"currentStock":  input.CurrentStock,
		"minStockLevel": input.MinStockLevel,
		"unitPerBox":    input.UnitPerBox,
	} {
		if err := shared.CheckQuantityScale(field, q); err != nil {
			return Product{}, err
		}
	}
	unitPerBox := input.UnitPerBox
	if unitPerBox.IsZero() {
		unitPerBox = decimal.NewFromInt(1)
	}
	if unitPerBox.IsNegative() {
		return Product{}, fmt.Errorf("%w: unitPerBox must be positive", shared.ErrInvalidArgument)
	}
	skus, err := input.ShopifySKUs.Normalize()
	if err != nil {
		return Product{}, err
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "units"
	}

	var (
		created Product
		opening []inventory.MovementResult
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextSequence(ctx, category)
		if err != nil {
			return err
		}
		p := Product{
			ID:             FormatID(category, seq),
			Tag:            strings.TrimSpace(input.Tag),
			ProductCode:    strings.TrimSpace(input.ProductCode),
			Name:           name,
			Category:       category,
			Unit:           unit,
			CurrentStock:   decimal.Zero,
			MinStockLevel:  input.MinStockLevel,
			Supplier:       strings.TrimSpace(input.Supplier),
			SupplierCode:   strings.TrimSpace(input.SupplierCode),
			UnitPerBox:     unitPerBox,
			ShopifySKUs:    skus,
			IncomingOrders: []IncomingOrder{},
		}
		if p.Tag == "" {
			p.Tag = FormatTag(category, seq)
		}
		if p.ProductCode == "" {
			p.ProductCode = FormatCode(category, seq)
		}
		if len(p.ShopifySKUs) == 0 {
			p.ShopifySKUs = GenerateSKUs(category, SKUNumber(input.Tag, seq))
		}
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		if err := tx.ReplaceSKUs(ctx, p.ID, p.ShopifySKUs); err != nil {
			return err
		}
		if input.CurrentStock.IsPositive() {
			res, err := inventory.ApplyMovement(ctx, tx, inventory.Movement{
				ProductID: p.ID,
				Quantity:  input.CurrentStock,
				Direction: inventory.DirectionAdd,
				Note:      "Opening stock",
			})
			if err != nil {
				return err
			}
			opening = append(opening, res)
		}
		created, err = tx.GetForUpdate(ctx, p.ID)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.stock.Committed(ctx, opening...)
	s.recordAudit(ctx, "products:create", created.ID, map[string]any{"name": created.Name, "category": created.Category})

	if created.Category == CategoryOils && s.cfg.ShopifySyncEnabled && s.sync != nil {
		if err := s.sync.EnqueueProductSync(ctx, created.ID); err != nil {
			s.logger.Warn("shopify sync enqueue failed", slog.String("product_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// Update applies a partial update. A changed currentStock is booked as a
// ledger movement so the audit trail stays complete.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Product, error) {
	var skus SKUMap
	if input.ShopifySKUs != nil {
		var err error
		if skus, err = input.ShopifySKUs.Normalize(); err != nil {
			return Product{}, err
		}
	}
	var (
		updated Product
		moves   []inventory.MovementResult
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPatch(&p, input); err != nil {
			return err
		}
		p.StockBoxes = inventory.BoxCount(p.CurrentStock, p.UnitPerBox)
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		if input.ShopifySKUs != nil {
			if err := tx.ReplaceSKUs(ctx, p.ID, skus); err != nil {
				return err
			}
		}
		if input.CurrentStock != nil && !input.CurrentStock.Equal(p.CurrentStock) {
			if input.CurrentStock.IsNegative() {
				return fmt.Errorf("%w: currentStock must not be negative", shared.ErrInvalidArgument)
			}
			if err := shared.CheckQuantityScale("currentStock", *input.CurrentStock); err != nil {
				return err
			}
			delta := input.CurrentStock.Sub(p.CurrentStock)
			direction := inventory.DirectionAdd
			if delta.IsNegative() {
				direction = inventory.DirectionRemove
			}
			res, err := inventory.ApplyMovement(ctx, tx, inventory.Movement{
				ProductID: p.ID,
				Quantity:  delta.Abs(),
				Direction: direction,
				Note:      "Manual edit",
			})
			if err != nil {
				return err
			}
			moves = append(moves, res)
		}
		updated, err = tx.GetForUpdate(ctx, p.ID)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	s.stock.Committed(ctx, moves...)
	s.recordAudit(ctx, "products:update", updated.ID, nil)
	return updated, nil
}

func applyPatch(p *Product, in UpdateInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be empty", shared.ErrInvalidArgument)
		}
		p.Name = name
	}
	if in.Category != nil {
		c, err := ParseCategory(*in.Category)
		if err != nil {
			return err
		}
		p.Category = c
	}
	if in.ProductCode != nil {
		p.ProductCode = strings.TrimSpace(*in.ProductCode)
	}
	if in.Tag != nil {
		p.Tag = strings.TrimSpace(*in.Tag)
	}
	if in.Unit != nil {
		p.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.MinStockLevel != nil {
		if in.MinStockLevel.IsNegative() {
			return fmt.Errorf("%w: minStockLevel must not be negative", shared.ErrInvalidArgument)
		}
		if err := shared.CheckQuantityScale("minStockLevel", *in.MinStockLevel); err != nil {
			return err
		}
		p.MinStockLevel = *in.MinStockLevel
	}
	if in.Supplier != nil {
		p.Supplier = strings.TrimSpace(*in.Supplier)
	}
	if in.SupplierCode != nil {
		p.SupplierCode = strings.TrimSpace(*in.SupplierCode)
	}
	if in.UnitPerBox != nil {
		if in.UnitPerBox.IsNegative() {
			return fmt.Errorf("%w: unitPerBox must not be negative", shared.ErrInvalidArgument)
		}
		if err := shared.CheckQuantityScale("unitPerBox", *in.UnitPerBox); err != nil {
			return err
		}
		p.UnitPerBox = *in.UnitPerBox
	}
	return nil
}

// Delete soft-deletes a product. Ledger rows are kept and its SKUs stop resolving.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.stock.Committed(ctx)
	s.recordAudit(ctx, "products:delete", id, nil)
	return nil
}

// ClearIncomingOrder removes the incoming order at index.
func (s *Service) ClearIncomingOrder(ctx context.Context, id string, index int) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(p.IncomingOrders) {
			return fmt.Errorf("%w: incoming order %d of product %s", shared.ErrNotFound, index, id)
		}
		orders := append(append([]IncomingOrder{}, p.IncomingOrders[:index]...), p.IncomingOrders[index+1:]...)
		return tx.SetIncomingOrders(ctx, id, orders)
	})
}

func (s *Service) recordAudit(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "product", EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
