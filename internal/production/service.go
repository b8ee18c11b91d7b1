package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-mfg/meridian-erp/internal/bom"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// FeasibilityEngine computes recipe requirements for a finished good.
type FeasibilityEngine interface {
	CheckFeasibility(ctx context.Context, masterProductID int64, plannedQty, density float64) (bom.Result, error)
}

// Metrics is the slice of observability the service reports into.
type Metrics interface {
	BatchCompleted()
	StockConflict()
}

// Service coordinates batch start, completion and cancellation.
type Service struct {
	repo    Repository
	engine  FeasibilityEngine
	logger  *slog.Logger
	metrics Metrics
}

// NewService builds Service. metrics may be nil.
func NewService(repo Repository, engine FeasibilityEngine, logger *slog.Logger, metrics Metrics) *Service {
	return &Service{repo: repo, engine: engine, logger: logger, metrics: metrics}
}

// StartBatchInput describes a new batch.
type StartBatchInput struct {
	MasterProductID   int64   `json:"master_product_id" validate:"required,gt=0"`
	ProductID         int64   `json:"product_id" validate:"required,gt=0"`
	PlannedQty        float64 `json:"planned_qty" validate:"required,gt=0"`
	StandardDensity   float64 `json:"standard_density" validate:"required,gt=0"`
	StandardViscosity float64 `json:"standard_viscosity" validate:"gte=0"`
	SupervisorID      int64   `json:"supervisor_id" validate:"required,gt=0"`
}

// CompleteBatchInput carries the measured outcome of a batch.
type CompleteBatchInput struct {
	ActualQty       float64       `json:"actual_qty" validate:"required,gt=0"`
	ActualDensity   float64       `json:"actual_density" validate:"required,gt=0"`
	ActualViscosity float64       `json:"actual_viscosity" validate:"gte=0"`
	Outputs         []OutputInput `json:"outputs,omitempty" validate:"omitempty,dive"`
}

// OutputInput is a secondary product produced alongside the finished good.
type OutputInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
}

// StartBatch creates a batch in Started state. Consumption is deferred to
// completion so planned-vs-actual reconciliation happens in one pass.
func (s *Service) StartBatch(ctx context.Context, input StartBatchInput) (*Batch, error) {
	if input.PlannedQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	batch := Batch{
		Code:              newBatchCode(),
		MasterProductID:   input.MasterProductID,
		ProductID:         input.ProductID,
		PlannedQty:        input.PlannedQty,
		StandardDensity:   input.StandardDensity,
		StandardViscosity: input.StandardViscosity,
		Status:            BatchStatusStarted,
		SupervisorID:      input.SupervisorID,
		StartedAt:         time.Now().UTC(),
	}
	id, err := s.repo.Insert(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("production: insert batch: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("production batch started",
			slog.Int64("batch_id", id),
			slog.String("code", batch.Code),
			slog.Float64("planned_qty", input.PlannedQty))
	}
	return s.repo.Get(ctx, id)
}

// CompleteBatch debits materials scaled to the actual outcome, credits the
// produced goods and records variance, all in one transaction. Any material
// shortfall aborts the whole operation and the batch stays Started.
func (s *Service) CompleteBatch(ctx context.Context, batchID int64, input CompleteBatchInput) (*Batch, error) {
	if input.ActualQty <= 0 {
		return nil, ErrInvalidQuantity
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		batch, err := repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != BatchStatusStarted {
			return fmt.Errorf("%w: batch %s is %s", ErrBatchNotStarted, batch.Code, batch.Status)
		}

		// Requirements are recomputed at the actual quantity and density,
		// not the planned figures.
		result, err := s.engine.CheckFeasibility(ctx, batch.MasterProductID, input.ActualQty, input.ActualDensity)
		if err != nil {
			return fmt.Errorf("recompute requirements: %w", err)
		}
		if !result.RecipeConfigured && s.logger != nil {
			s.logger.Warn("completing batch without a configured recipe",
				slog.Int64("batch_id", batchID),
				slog.Int64("master_product_id", batch.MasterProductID))
		}

		led := repo.Ledger()
		ref := ledger.Ref{Module: "production", ID: batch.Code}

		for _, req := range result.Requirements {
			if req.RequiredQty <= 0 {
				continue
			}
			if _, err := led.DebitConsumption(ctx, req.MaterialProductID, req.RequiredQty, ref); err != nil {
				return fmt.Errorf("consume %s: %w", req.MaterialName, err)
			}
			consumed := ConsumedMaterial{
				BatchID:           batchID,
				MaterialProductID: req.MaterialProductID,
				MaterialName:      req.MaterialName,
				Qty:               req.RequiredQty,
				Unit:              req.Unit,
			}
			if err := repo.InsertConsumed(ctx, consumed); err != nil {
				return fmt.Errorf("record consumption: %w", err)
			}
		}

		if _, err := led.CreditProduction(ctx, batch.ProductID, input.ActualQty, ref); err != nil {
			return fmt.Errorf("credit finished good: %w", err)
		}
		for _, output := range input.Outputs {
			if _, err := led.CreditProduction(ctx, output.ProductID, output.Qty, ref); err != nil {
				return fmt.Errorf("credit sub-product %d: %w", output.ProductID, err)
			}
			if err := repo.InsertOutput(ctx, SubProductOutput{BatchID: batchID, ProductID: output.ProductID, Qty: output.Qty}); err != nil {
				return fmt.Errorf("record sub-product: %w", err)
			}
		}

		variance := Variance{
			BatchID:           batchID,
			DensityVariance:   input.ActualDensity - batch.StandardDensity,
			ViscosityVariance: input.ActualViscosity - batch.StandardViscosity,
			WeightVariance:    input.ActualQty*input.ActualDensity - batch.PlannedQty*batch.StandardDensity,
		}
		if err := repo.InsertVariance(ctx, variance); err != nil {
			return fmt.Errorf("record variance: %w", err)
		}

		return repo.MarkCompleted(ctx, batchID, input.ActualQty, input.ActualDensity, input.ActualViscosity)
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, db.ErrConcurrentStockConflict) {
			s.metrics.StockConflict()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BatchCompleted()
	}
	if s.logger != nil {
		s.logger.Info("production batch completed",
			slog.Int64("batch_id", batchID),
			slog.Float64("actual_qty", input.ActualQty))
	}
	return s.repo.Get(ctx, batchID)
}

// CancelBatch cancels a started batch. Nothing was committed to the ledger
// yet, so this is a pure status change.
func (s *Service) CancelBatch(ctx context.Context, batchID int64, reason string) (*Batch, error) {
	reason = strings.TrimSpace(reason)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		batch, err := repo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != BatchStatusStarted && batch.Status != BatchStatusPlanned {
			return fmt.Errorf("%w: batch %s is %s", ErrBatchNotStarted, batch.Code, batch.Status)
		}
		return repo.MarkCancelled(ctx, batchID, reason)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, batchID)
}

// Feasibility exposes the recipe feasibility check for planning.
func (s *Service) Feasibility(ctx context.Context, masterProductID int64, plannedQty, density float64) (bom.Result, error) {
	return s.engine.CheckFeasibility(ctx, masterProductID, plannedQty, density)
}

// Get loads one batch with its consumption and output records.
func (s *Service) Get(ctx context.Context, id int64) (*Batch, error) {
	return s.repo.Get(ctx, id)
}

func newBatchCode() string {
	return "PB-" + strings.ToUpper(uuid.NewString()[:8])
}
