package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup pre-populates the cancellation statistics cache.
	TaskStatsWarmup = "orders:stats_warmup"
	// TaskStockInvariantScan sweeps product counters for negative values.
	TaskStockInvariantScan = "ledger:invariant_scan"
)

// StatsWarmupPayload configures a cache warmup run.
type StatsWarmupPayload struct {
	Force bool `json:"force"`
}

// NewStatsWarmupTask constructs an Asynq task.
func NewStatsWarmupTask(payload StatsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, data), nil
}

// StockScanPayload configures an invariant scan run.
type StockScanPayload struct {
	Limit int `json:"limit"`
}

// NewStockScanTask constructs an Asynq task.
func NewStockScanTask(payload StockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockInvariantScan, data), nil
}
