package bom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scentstock/scentstock/internal/shared"
)

// RepositoryPort abstracts BOM persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, variant string) ([]Component, error)
}

// TxRepository exposes transactional BOM operations.
type TxRepository interface {
	// LockVariant serialises writers of one variant for the rest of the transaction.
	LockVariant(ctx context.Context, variant string) error
	ListVariant(ctx context.Context, variant string) ([]Component, error)
	Insert(ctx context.Context, c Component) error
	Update(ctx context.Context, c Component) error
	Delete(ctx context.Context, id int64) error
	SetSeq(ctx context.Context, id int64, seq int) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages BOM definitions.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns components grouped by variant, each ordered by seq.
func (s *Service) List(ctx context.Context, variant string) (map[string][]Component, error) {
	rows, err := s.repo.List(ctx, strings.TrimSpace(variant))
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Component)
	for _, c := range rows {
		grouped[c.Variant] = append(grouped[c.Variant], c)
	}
	return grouped, nil
}

// AddComponent appends a component at seq max+1.
func (s *Service) AddComponent(ctx context.Context, in AddInput) ([]Component, error) {
	variant := strings.TrimSpace(in.Variant)
	code := strings.TrimSpace(in.ComponentCode)
	if variant == "" || code == "" {
		return nil, fmt.Errorf("%w: variant and componentCode are required", shared.ErrInvalidArgument)
	}
	if !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	if err := shared.CheckQuantityScale("quantity", in.Quantity); err != nil {
		return nil, err
	}
	var out []Component
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockVariant(ctx, variant); err != nil {
			return err
		}
		current, err := tx.ListVariant(ctx, variant)
		if err != nil {
			return err
		}
		if _, found := find(current, code); found {
			return fmt.Errorf("%w: component %s already exists in %s", shared.ErrConflict, code, variant)
		}
		next := 1
		for _, existing := range current {
			if existing.Seq >= next {
				next = existing.Seq + 1
			}
		}
		c := Component{
			Variant:       variant,
			Seq:           next,
			ComponentCode: code,
			ComponentName: strings.TrimSpace(in.ComponentName),
			Quantity:      in.Quantity,
		}
		if err := tx.Insert(ctx, c); err != nil {
			return err
		}
		out, err = tx.ListVariant(ctx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "bom:add", variant, code)
	return out, nil
}

// UpdateComponent changes name and/or quantity of an existing component.
func (s *Service) UpdateComponent(ctx context.Context, variant, code string, in UpdateInput) ([]Component, error) {
	if in.Quantity != nil {
		if !in.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
		}
		if err := shared.CheckQuantityScale("quantity", *in.Quantity); err != nil {
			return nil, err
		}
	}
	var out []Component
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockVariant(ctx, variant); err != nil {
			return err
		}
		current, err := tx.ListVariant(ctx, variant)
		if err != nil {
			return err
		}
		c, found := find(current, code)
		if !found {
			return fmt.Errorf("%w: component %s in %s", shared.ErrNotFound, code, variant)
		}
		if in.ComponentName != nil {
			c.ComponentName = strings.TrimSpace(*in.ComponentName)
		}
		if in.Quantity != nil {
			c.Quantity = *in.Quantity
		}
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		out, err = tx.ListVariant(ctx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "bom:update", variant, code)
	return out, nil
}

// DeleteComponent removes a component and renumbers the rest 1..N-1.
func (s *Service) DeleteComponent(ctx context.Context, variant, code string) ([]Component, error) {
	var out []Component
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockVariant(ctx, variant); err != nil {
			return err
		}
		current, err := tx.ListVariant(ctx, variant)
		if err != nil {
			return err
		}
		c, found := find(current, code)
		if !found {
			return fmt.Errorf("%w: component %s in %s", shared.ErrNotFound, code, variant)
		}
		if err := tx.Delete(ctx, c.ID); err != nil {
			return err
		}
		seq := 0
		for _, other := range current {
			if other.ID == c.ID {
				continue
			}
			seq++
			if other.Seq == seq {
				continue
			}
			if err := tx.SetSeq(ctx, other.ID, seq); err != nil {
				return err
			}
		}
		out, err = tx.ListVariant(ctx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "bom:delete", variant, code)
	return out, nil
}

func find(components []Component, code string) (Component, bool) {
	for _, c := range components {
		if c.ComponentCode == code {
			return c, true
		}
	}
	return Component{}, false
}

func (s *Service) recordAudit(ctx context.Context, action, variant, code string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "bom",
		EntityID: variant + ":" + code,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
