package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scentstock/scentstock/internal/jobs"
	"github.com/scentstock/scentstock/internal/products"
)

// LowStockLister returns products under their minimum stock level.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]products.Product, error)
}

// LowStockGauge receives the latest low stock count.
type LowStockGauge interface {
	SetLowStock(count int)
}

// LowStockScanJob refreshes the low stock gauge and logs each short product.
type LowStockScanJob struct {
	Products LowStockLister
	Gauge    LowStockGauge
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(lister LowStockLister, gauge LowStockGauge, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Products: lister, Gauge: gauge, Logger: logger, Metrics: metrics}
}

// Handle runs one scan. The payload only carries scheduling metadata so it is
// not required.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()

	items, err := j.Products.LowStock(ctx)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	if j.Gauge != nil {
		j.Gauge.SetLowStock(len(items))
	}
	j.metrics().AddItems(TaskLowStockScan, int64(len(items)))
	for _, p := range items {
		j.logger().Warn("product below minimum stock",
			slog.String("product_id", p.ID),
			slog.String("name", p.Name),
			slog.String("current_stock", p.CurrentStock.String()),
			slog.String("min_stock_level", p.MinStockLevel.String()),
		)
	}
	j.logger().Info("low stock scan complete", slog.Int("count", len(items)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
