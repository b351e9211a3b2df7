package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scentstock/scentstock/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskShopifyProductSync pushes a newly created oil to the Shopify catalogue.
	TaskShopifyProductSync = "shopify:product_sync"
	// TaskIdempotencyCleanup purges expired webhook idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskLowStockScan recounts products under their minimum stock level.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// productSyncMaxRetry bounds Shopify retries before the task is archived.
const productSyncMaxRetry = 5

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ProductSyncPayload identifies the product to publish.
type ProductSyncPayload struct {
	ProductID string `json:"product_id"`
}

// NewProductSyncTask constructs an Asynq task for a Shopify product sync.
func NewProductSyncTask(productID string) (*asynq.Task, error) {
	body, err := json.Marshal(ProductSyncPayload{ProductID: productID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskShopifyProductSync, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(productSyncMaxRetry),
	), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
