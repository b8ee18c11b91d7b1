package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-mfg/meridian-erp/internal/jobs"
	"github.com/meridian-mfg/meridian-erp/internal/orders"
)

// StatsWarmupJob refreshes the cancellation statistics cache so dashboard
// reads never pay the aggregate query cost.
type StatsWarmupJob struct {
	Orders  *orders.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(ordersSvc *orders.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{Orders: ordersSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStatsWarmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orders == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskStatsWarmup)
	start := time.Now()
	stats, err := j.Orders.Stats(ctx)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("stats warmup failed", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if j.Logger != nil {
		j.Logger.Info("cancellation stats warmed",
			slog.Int("total_cancelled", stats.TotalCancelled),
			slog.Duration("duration", time.Since(start)))
	}
	return tracker.End(nil)
}
