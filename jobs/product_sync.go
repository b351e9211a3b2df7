package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scentstock/scentstock/internal/jobs"
	"github.com/scentstock/scentstock/internal/products"
	"github.com/scentstock/scentstock/internal/shared"
	"github.com/scentstock/scentstock/internal/shopify"
)

// ProductGetter loads a product by id.
type ProductGetter interface {
	Get(ctx context.Context, id string) (products.Product, error)
}

// ProductPublisher creates a product listing in the storefront.
type ProductPublisher interface {
	CreateProduct(ctx context.Context, p products.Product) (shopify.ProductPayload, error)
}

// ProductSyncJob publishes new oils to Shopify outside the request path.
type ProductSyncJob struct {
	Products  ProductGetter
	Publisher ProductPublisher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewProductSyncJob initialises the product sync handler.
func NewProductSyncJob(getter ProductGetter, publisher ProductPublisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProductSyncJob {
	return &ProductSyncJob{Products: getter, Publisher: publisher, Logger: logger, Metrics: metrics}
}

// Handle publishes the product referenced by the task payload.
func (j *ProductSyncJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Products == nil || j.Publisher == nil {
		return errors.New("product sync: handler not configured")
	}
	var payload ProductSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProductID == "" {
		return fmt.Errorf("product sync: invalid payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskShopifyProductSync)
	defer func() {
		err = tracker.End(err)
	}()
	logger := j.logger().With(slog.String("product_id", payload.ProductID))

	product, err := j.Products.Get(ctx, payload.ProductID)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("product sync skipped, product no longer exists")
		return fmt.Errorf("product sync: %w", asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if product.Category != products.CategoryOils {
		logger.Info("product sync skipped, not an oil", slog.String("category", string(product.Category)))
		return nil
	}

	created, err := j.Publisher.CreateProduct(ctx, product)
	if errors.Is(err, shopify.ErrNotConfigured) {
		logger.Warn("product sync skipped, shopify not configured")
		return fmt.Errorf("product sync: %w", asynq.SkipRetry)
	}
	if err != nil {
		logger.Error("shopify product create failed", slog.Any("error", err))
		return err
	}
	logger.Info("product synced to shopify", slog.Int64("shopify_id", created.ID), slog.Int("variants", len(created.Variants)))
	return nil
}

func (j *ProductSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ProductSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
