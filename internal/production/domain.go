// Package production reconciles production batches against the stock ledger.
package production

import (
	"errors"
	"time"
)

// BatchStatus enumerates the batch lifecycle.
type BatchStatus string

const (
	BatchStatusPlanned   BatchStatus = "Planned"
	BatchStatusStarted   BatchStatus = "Started"
	BatchStatusCompleted BatchStatus = "Completed"
	BatchStatusCancelled BatchStatus = "Cancelled"
)

// Batch is one production run of a finished good.
type Batch struct {
	ID                int64              `json:"id"`
	Code              string             `json:"code"`
	MasterProductID   int64              `json:"master_product_id"`
	ProductID         int64              `json:"product_id"`
	PlannedQty        float64            `json:"planned_qty"`
	ActualQty         float64            `json:"actual_qty"`
	StandardDensity   float64            `json:"standard_density"`
	ActualDensity     float64            `json:"actual_density"`
	StandardViscosity float64            `json:"standard_viscosity"`
	ActualViscosity   float64            `json:"actual_viscosity"`
	Status            BatchStatus        `json:"status"`
	SupervisorID      int64              `json:"supervisor_id"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	Consumed          []ConsumedMaterial `json:"consumed,omitempty"`
	Outputs           []SubProductOutput `json:"outputs,omitempty"`
}

// ConsumedMaterial records one material debit made at completion.
type ConsumedMaterial struct {
	ID                int64   `json:"id"`
	BatchID           int64   `json:"batch_id"`
	MaterialProductID int64   `json:"material_product_id"`
	MaterialName      string  `json:"material_name"`
	Qty               float64 `json:"qty"`
	Unit              string  `json:"unit"`
}

// SubProductOutput records a secondary product credited at completion.
type SubProductOutput struct {
	ID        int64   `json:"id"`
	BatchID   int64   `json:"batch_id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
}

// Variance captures actual minus standard figures for quality reporting.
// The reporting subsystem reads these, it never writes.
type Variance struct {
	BatchID           int64   `json:"batch_id"`
	DensityVariance   float64 `json:"density_variance"`
	ViscosityVariance float64 `json:"viscosity_variance"`
	WeightVariance    float64 `json:"weight_variance"`
}

var (
	// ErrBatchNotFound indicates the batch does not exist.
	ErrBatchNotFound = errors.New("production: batch not found")
	// ErrBatchNotStarted indicates a completion or cancellation attempt on a
	// batch outside the Started state.
	ErrBatchNotStarted = errors.New("production: batch is not in started state")
	// ErrInvalidQuantity indicates a non-positive quantity input.
	ErrInvalidQuantity = errors.New("production: quantity must be positive")
)
