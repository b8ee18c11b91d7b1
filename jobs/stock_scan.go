package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-mfg/meridian-erp/internal/jobs"
)

// StockScanJob sweeps product counters for invariant breaches. The ledger
// never writes a negative counter, so any hit here means data was mutated
// outside the ledger and needs operator attention.
type StockScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockScanJob wires dependencies for the scan handler.
func NewStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockScanJob {
	return &StockScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type breachedProduct struct {
	ID           int64
	Name         string
	AvailableQty float64
	ReservedQty  float64
}

// Handle processes TaskStockInvariantScan tasks.
func (j *StockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock scan: handler not configured")
	}
	var payload StockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 100
	}

	tracker := j.Metrics.Track(TaskStockInvariantScan)
	breached, err := j.scan(ctx, limit)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("stock invariant scan failed", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if len(breached) == 0 {
		if j.Logger != nil {
			j.Logger.Info("stock invariant scan clean")
		}
		return tracker.End(nil)
	}
	j.reportBreaches(breached)
	return tracker.End(nil)
}

func (j *StockScanJob) reportBreaches(breached []breachedProduct) {
	available, reserved := 0, 0
	for _, p := range breached {
		if p.AvailableQty < 0 {
			available++
		}
		if p.ReservedQty < 0 {
			reserved++
		}
		if j.Logger != nil {
			j.Logger.Error("negative stock counter detected",
				slog.Int64("product_id", p.ID),
				slog.String("name", p.Name),
				slog.Float64("available_qty", p.AvailableQty),
				slog.Float64("reserved_qty", p.ReservedQty))
		}
	}
	j.Metrics.AddInvariantBreaches("available_qty", available)
	j.Metrics.AddInvariantBreaches("reserved_qty", reserved)
}

func (j *StockScanJob) scan(ctx context.Context, limit int) ([]breachedProduct, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT id, name, available_qty, reserved_qty
		   FROM products
		  WHERE available_qty < 0 OR reserved_qty < 0
		  ORDER BY id ASC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breached []breachedProduct
	for rows.Next() {
		var p breachedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.AvailableQty, &p.ReservedQty); err != nil {
			return nil, err
		}
		breached = append(breached, p)
	}
	return breached, rows.Err()
}
