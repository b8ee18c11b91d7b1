package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftReserveAndRelease(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 100, 0)
	ctx := context.Background()

	snap, err := led.SoftReserve(ctx, 1, 10, Ref{Module: "orders", ID: "SO-1"})
	require.NoError(t, err)
	require.InDelta(t, 100.0, snap.Available, 0.0001)
	require.InDelta(t, 10.0, snap.Reserved, 0.0001)

	snap, err = led.ReleaseReservation(ctx, 1, 10, Ref{Module: "orders", ID: "SO-1"})
	require.NoError(t, err)
	require.InDelta(t, 100.0, snap.Available, 0.0001)
	require.InDelta(t, 0.0, snap.Reserved, 0.0001)
}

func TestReleaseSaturatesAtZero(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 50, 4)
	ctx := context.Background()

	snap, err := led.ReleaseReservation(ctx, 1, 10, Ref{})
	require.NoError(t, err)
	require.InDelta(t, 0.0, snap.Reserved, 0.0001)
	require.InDelta(t, 50.0, snap.Available, 0.0001)

	// Double release stays at zero.
	snap, err = led.ReleaseReservation(ctx, 1, 10, Ref{})
	require.NoError(t, err)
	require.InDelta(t, 0.0, snap.Reserved, 0.0001)
}

func TestCommitGuardLeavesCountersUntouched(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 100, 20)
	ctx := context.Background()

	_, err := led.CommitAllocation(ctx, 1, 150, Ref{})
	require.ErrorIs(t, err, ErrInsufficientStock)

	snap, err := led.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 100.0, snap.Available, 0.0001)
	require.InDelta(t, 20.0, snap.Reserved, 0.0001)
}

func TestCommitReleasesReservation(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 100, 20)
	ctx := context.Background()

	snap, err := led.CommitAllocation(ctx, 1, 20, Ref{})
	require.NoError(t, err)
	require.InDelta(t, 80.0, snap.Available, 0.0001)
	require.InDelta(t, 0.0, snap.Reserved, 0.0001)
}

func TestDebitConsumptionGuard(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(7, 5, 0)
	ctx := context.Background()

	_, err := led.DebitConsumption(ctx, 7, 6, Ref{Module: "production"})
	require.ErrorIs(t, err, ErrInsufficientMaterial)

	snap, err := led.DebitConsumption(ctx, 7, 5, Ref{Module: "production"})
	require.NoError(t, err)
	require.InDelta(t, 0.0, snap.Available, 0.0001)
}

func TestUnknownProduct(t *testing.T) {
	led := NewMemoryLedger()
	ctx := context.Background()

	_, err := led.SoftReserve(ctx, 99, 1, Ref{})
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = led.Snapshot(ctx, 99)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestInvalidQuantity(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 10, 0)
	ctx := context.Background()

	_, err := led.SoftReserve(ctx, 1, 0, Ref{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = led.CommitAllocation(ctx, 1, -3, Ref{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMovementsCarryRunningBalance(t *testing.T) {
	led := NewMemoryLedger()
	led.Seed(1, 100, 0)
	ctx := context.Background()

	_, err := led.SoftReserve(ctx, 1, 30, Ref{Module: "orders", ID: "SO-1"})
	require.NoError(t, err)
	_, err = led.CommitAllocation(ctx, 1, 30, Ref{Module: "orders", ID: "SO-1"})
	require.NoError(t, err)

	movements, err := led.Movements(ctx, MovementFilter{ProductID: 1})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, MovementReserve, movements[0].Kind)
	require.Equal(t, MovementCommit, movements[1].Kind)
	require.InDelta(t, 70.0, movements[1].BalanceAvailable, 0.0001)
	require.InDelta(t, 0.0, movements[1].BalanceReserved, 0.0001)
	require.Equal(t, "SO-1", movements[1].RefID)
}
