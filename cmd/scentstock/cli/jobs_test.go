package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct{}

func (fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 3, Active: 1, Retry: 2}, nil
}

func (fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{Type: jobs.TaskLowStockScan, NextProcessAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}}, nil
}

func (fakeInspector) Close() error { return nil }

func TestTriggerCleanupCarriesRetention(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq, inspector: fakeInspector{}, retention: 48 * time.Hour}

	var out bytes.Buffer
	code := c.run(context.Background(), []string{"trigger", jobs.TaskIdempotencyCleanup}, &out)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "enqueued maintenance:idempotency_cleanup")

	require.Len(t, enq.tasks, 1)
	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, 48, payload.RetentionHours)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{}, inspector: fakeInspector{}}
	var out bytes.Buffer
	assert.Equal(t, 1, c.run(context.Background(), []string{"trigger", "mail:send"}, &out))
	assert.Contains(t, out.String(), "unsupported job")
	assert.Equal(t, 2, c.run(context.Background(), nil, &out))
}

func TestStats(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{}, inspector: fakeInspector{}}
	var out bytes.Buffer
	require.Equal(t, 0, c.run(context.Background(), []string{"stats"}, &out))
	assert.Contains(t, out.String(), "PENDING")
	assert.Contains(t, out.String(), "scheduled inventory:low_stock_scan at 2026-05-01T09:00:00Z")
}
