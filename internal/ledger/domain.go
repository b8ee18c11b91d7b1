// Package ledger maintains the per-product stock counters. Every mutation is
// a single atomic statement against the product row, so concurrent writers
// serialize at the storage layer and no update is lost.
package ledger

import (
	"context"
	"errors"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementReserve records a soft reservation.
	MovementReserve MovementKind = "RESERVE"
	// MovementRelease records a reservation release.
	MovementRelease MovementKind = "RELEASE"
	// MovementCommit records a reservation converted into a stock deduction.
	MovementCommit MovementKind = "COMMIT"
	// MovementRestore records stock restored from a cancelled commitment.
	MovementRestore MovementKind = "RESTORE"
	// MovementProduce records production output credited to stock.
	MovementProduce MovementKind = "PRODUCE"
	// MovementConsume records material consumed by production.
	MovementConsume MovementKind = "CONSUME"
)

// Snapshot is the current counter pair for a product.
type Snapshot struct {
	ProductID int64   `json:"product_id"`
	Available float64 `json:"available_qty"`
	Reserved  float64 `json:"reserved_qty"`
}

// Movement is one append-only row of the derived stock card. BalanceAvailable
// and BalanceReserved carry the counters as they stood after the movement.
type Movement struct {
	ID               int64        `json:"id"`
	ProductID        int64        `json:"product_id"`
	Kind             MovementKind `json:"kind"`
	QtyIn            float64      `json:"qty_in"`
	QtyOut           float64      `json:"qty_out"`
	BalanceAvailable float64      `json:"balance_available"`
	BalanceReserved  float64      `json:"balance_reserved"`
	RefModule        string       `json:"ref_module"`
	RefID            string       `json:"ref_id"`
	Note             string       `json:"note,omitempty"`
	PostedAt         time.Time    `json:"posted_at"`
}

// Ref ties a movement back to the operation that caused it.
type Ref struct {
	Module string
	ID     string
	Note   string
}

// MovementFilter narrows the stock card query.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrProductNotFound indicates the product row does not exist.
	ErrProductNotFound = errors.New("ledger: product not found")
	// ErrInsufficientStock is returned by CommitAllocation when the debit
	// would drive available below zero.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	// ErrInsufficientMaterial is returned by DebitConsumption when the debit
	// would drive available below zero.
	ErrInsufficientMaterial = errors.New("ledger: insufficient material")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
)

// Ledger exposes the stock counter primitives. Implementations guarantee
// per-product atomicity; the transactional implementation obtained from
// Repository.WithTx additionally bundles all calls into one transaction.
type Ledger interface {
	// SoftReserve adds qty to reserved. A reservation is a soft hold, so it
	// never fails on insufficient available stock.
	SoftReserve(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// ReleaseReservation removes qty from reserved, flooring at zero so a
	// double release can never push the counter negative.
	ReleaseReservation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// CommitAllocation debits available and releases the matching
	// reservation in one step. Fails with ErrInsufficientStock.
	CommitAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// RestoreAllocation credits available back, inverse of CommitAllocation.
	RestoreAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// CreditProduction credits available with production output.
	CreditProduction(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// DebitConsumption debits available for consumed material. Fails with
	// ErrInsufficientMaterial.
	DebitConsumption(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error)
	// Snapshot reads the current counters.
	Snapshot(ctx context.Context, productID int64) (Snapshot, error)
}
