package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-mfg/meridian-erp/internal/audit"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
	_ "github.com/meridian-mfg/meridian-erp/testing"
)

type memoryRepo struct {
	orders map[int64]*Order
	led    *ledger.MemoryLedger
	events []audit.Event
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]*Order), led: ledger.NewMemoryLedger()}
}

func (r *memoryRepo) addOrder(status Status, lines ...OrderLine) int64 {
	r.nextID++
	id := r.nextID
	o := &Order{ID: id, DocNumber: "SO-TEST", CustomerID: 1, Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for i := range lines {
		lines[i].OrderID = id
		lines[i].LineOrder = i + 1
		o.Lines = append(o.Lines, lines[i])
	}
	r.orders[id] = o
	return id
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithCustomer, int, error) {
	var out []OrderWithCustomer
	for _, o := range r.orders {
		for _, s := range req.Statuses {
			if o.Status == s {
				out = append(out, OrderWithCustomer{Order: *o, CustomerName: "ACME"})
			}
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, order Order) (int64, error) {
	r.nextID++
	order.ID = r.nextID
	r.orders[order.ID] = &order
	return order.ID, nil
}

func (r *memoryRepo) Stats(ctx context.Context, now time.Time) (CancellationStats, error) {
	var stats CancellationStats
	for _, o := range r.orders {
		for _, s := range CancellableStatuses {
			if o.Status == s {
				stats.TotalCancellable++
			}
		}
		if o.Status == StatusCancelled {
			stats.TotalCancelled++
		}
	}
	return stats, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, reason *string) error {
	o, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	if status.IsCancelledFamily() {
		now := time.Now()
		o.CancelledAt = &now
		o.CancelledBy = &actorID
		o.CancellationReason = reason
	}
	return nil
}

func (r *memoryRepo) Ledger() ledger.Ledger { return r.led }

func (r *memoryRepo) RecordAudit(ctx context.Context, event audit.Event) error {
	r.events = append(r.events, event)
	return nil
}

func requireSnapshot(t *testing.T, led *ledger.MemoryLedger, productID int64, available, reserved float64) {
	t.Helper()
	snap, err := led.Snapshot(context.Background(), productID)
	require.NoError(t, err)
	require.InDelta(t, available, snap.Available, 0.0001)
	require.InDelta(t, reserved, snap.Reserved, 0.0001)
}

func TestAcceptReservesStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 30})
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Transition(context.Background(), orderID, StatusAccepted, TransitionOptions{})
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, order.Status)
	requireSnapshot(t, repo.led, 1, 100, 30)
}

func TestCancelFromReservedReleasesReservation(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 30})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Transition(ctx, orderID, StatusAccepted, TransitionOptions{})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, orderID, "customer changed mind", 7, false)
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 100, 0)
}

func TestCancelFromCommittedRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 20})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Transition(ctx, orderID, StatusAccepted, TransitionOptions{})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, orderID, StatusReadyForDispatch, TransitionOptions{})
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 80, 0)

	_, err = svc.Cancel(ctx, orderID, "dock damage", 7, false)
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 100, 0)
}

func TestCancelFromPendingIsLedgerNoop(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 30})
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), orderID, "duplicate entry", 7, false)
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 100, 0)

	movements, err := repo.led.Movements(context.Background(), ledger.MovementFilter{ProductID: 1})
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestCommitGuardBlocksReadyForDispatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusAccepted, OrderLine{ProductID: 1, Quantity: 150})
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Transition(context.Background(), orderID, StatusReadyForDispatch, TransitionOptions{})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	// The transition must not have gone through.
	order, err := svc.Get(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, order.Status)
}

func TestDoubleCancelIsGuarded(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusAccepted, OrderLine{ProductID: 1, Quantity: 30})
	repo.led.Seed(1, 100, 30)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, orderID, "first", 7, false)
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 100, 0)

	_, err = svc.Cancel(ctx, orderID, "second", 7, false)
	require.ErrorIs(t, err, ErrOrderAlreadyCancelled)
	requireSnapshot(t, repo.led, 1, 100, 0)
}

func TestCancelRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusAccepted, OrderLine{ProductID: 1, Quantity: 10})
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Cancel(context.Background(), orderID, "   ", 7, false)
	require.ErrorIs(t, err, ErrMissingCancellationReason)
}

func TestDispatchedCancelNeedsConfirmation(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 80, 0)
	orderID := repo.addOrder(StatusDispatched, OrderLine{ProductID: 1, Quantity: 20})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, orderID, "customer refused delivery", 7, false)
	require.ErrorIs(t, err, ErrReturnUnconfirmed)
	requireSnapshot(t, repo.led, 1, 80, 0)

	_, err = svc.Cancel(ctx, orderID, "customer refused delivery", 7, true)
	require.NoError(t, err)
	requireSnapshot(t, repo.led, 1, 100, 0)

	require.NotEmpty(t, repo.events)
	last := repo.events[len(repo.events)-1]
	require.Equal(t, audit.EventOrderReturnedToStock, last.Type)
}

func TestInvalidTransitionRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 10})
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Transition(context.Background(), orderID, StatusDispatched, TransitionOptions{})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), orderID, Status("Shipped"), TransitionOptions{})
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTransitionUnknownOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Transition(context.Background(), 42, StatusAccepted, TransitionOptions{})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAuditEventsRecordedWithTransition(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 5})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Transition(ctx, orderID, StatusAccepted, TransitionOptions{ActorID: 3})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, orderID, "late delivery window", 3, false)
	require.NoError(t, err)

	require.Len(t, repo.events, 2)
	require.Equal(t, audit.EventStatusChanged, repo.events[0].Type)
	require.Equal(t, audit.EventOrderCancelled, repo.events[1].Type)
	require.Equal(t, string(StatusAccepted), repo.events[1].FromStatus)
	require.Equal(t, "late delivery window", repo.events[1].Reason)
}

func TestStateMachineTable(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusOnHold))
	require.True(t, CanTransition(StatusOnHold, StatusPending))
	require.True(t, CanTransition(StatusPending, StatusInProduction))
	require.False(t, CanTransition(StatusCancelled, StatusPending))
	require.False(t, CanTransition(StatusDispatched, StatusPending))

	require.Equal(t, EffectReserve, EffectFor(StatusOnHold, StatusAccepted))
	require.Equal(t, EffectCommit, EffectFor(StatusInProduction, StatusReadyForDispatch))
	require.Equal(t, EffectRelease, EffectFor(StatusScheduled, StatusCancelled))
	require.Equal(t, EffectRestore, EffectFor(StatusDispatched, StatusReturned))
	require.Equal(t, EffectNone, EffectFor(StatusPending, StatusOnHold))
	require.Equal(t, EffectNone, EffectFor(StatusAccepted, StatusScheduled))
	require.Equal(t, EffectNone, EffectFor(StatusReadyForDispatch, StatusDispatched))
	require.Equal(t, EffectNone, EffectFor(StatusPending, StatusRejected))
}

type conflictTxRepo struct {
	*memoryRepo
}

func (r *conflictTxRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fmt.Errorf("platform/db: commit tx: %w", db.ErrConcurrentStockConflict)
}

type recordingMetrics struct {
	transitions int
	conflicts   int
}

func (m *recordingMetrics) OrderTransitionApplied(from, to string) { m.transitions++ }
func (m *recordingMetrics) StockConflict()                         { m.conflicts++ }

func TestTransitionCountsStorageConflicts(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 30})

	metrics := &recordingMetrics{}
	svc := NewService(&conflictTxRepo{repo}, nil, metrics, nil)

	_, err := svc.Transition(context.Background(), orderID, StatusAccepted, TransitionOptions{})
	require.ErrorIs(t, err, db.ErrConcurrentStockConflict)
	require.Equal(t, 1, metrics.conflicts)
	require.Equal(t, 0, metrics.transitions)
}

func TestTransitionCountsAppliedTransitions(t *testing.T) {
	repo := newMemoryRepo()
	repo.led.Seed(1, 100, 0)
	orderID := repo.addOrder(StatusPending, OrderLine{ProductID: 1, Quantity: 30})

	metrics := &recordingMetrics{}
	svc := NewService(repo, nil, metrics, nil)

	_, err := svc.Transition(context.Background(), orderID, StatusAccepted, TransitionOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, metrics.transitions)
	require.Equal(t, 0, metrics.conflicts)
}
