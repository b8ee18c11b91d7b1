package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-memory Ledger with the same counter semantics as the
// SQL implementation. It backs unit tests across packages and small tools
// that do not need a database.
type MemoryLedger struct {
	mu        sync.Mutex
	snapshots map[int64]Snapshot
	movements []Movement
	nextID    int64
}

// NewMemoryLedger constructs an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{snapshots: make(map[int64]Snapshot)}
}

// Seed sets the counters for a product, creating the row when missing.
func (m *MemoryLedger) Seed(productID int64, available, reserved float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[productID] = Snapshot{ProductID: productID, Available: available, Reserved: reserved}
}

// WithTx mirrors Repository.WithTx. The memory implementation has no real
// transaction, it simply hands back itself.
func (m *MemoryLedger) WithTx(ctx context.Context, fn func(context.Context, Ledger) error) error {
	return fn(ctx, m)
}

func (m *MemoryLedger) SoftReserve(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementReserve, ref, func(s *Snapshot) error {
		s.Reserved += qty
		return nil
	}, 0, 0)
}

func (m *MemoryLedger) ReleaseReservation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementRelease, ref, func(s *Snapshot) error {
		s.Reserved -= qty
		if s.Reserved < 0 {
			s.Reserved = 0
		}
		return nil
	}, 0, 0)
}

func (m *MemoryLedger) CommitAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementCommit, ref, func(s *Snapshot) error {
		if s.Available < qty {
			return ErrInsufficientStock
		}
		s.Available -= qty
		s.Reserved -= qty
		if s.Reserved < 0 {
			s.Reserved = 0
		}
		return nil
	}, 0, qty)
}

func (m *MemoryLedger) RestoreAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementRestore, ref, func(s *Snapshot) error {
		s.Available += qty
		return nil
	}, qty, 0)
}

func (m *MemoryLedger) CreditProduction(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementProduce, ref, func(s *Snapshot) error {
		s.Available += qty
		return nil
	}, qty, 0)
}

func (m *MemoryLedger) DebitConsumption(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	return m.apply(productID, qty, MovementConsume, ref, func(s *Snapshot) error {
		if s.Available < qty {
			return ErrInsufficientMaterial
		}
		s.Available -= qty
		return nil
	}, 0, qty)
}

func (m *MemoryLedger) Snapshot(ctx context.Context, productID int64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[productID]
	if !ok {
		return Snapshot{}, ErrProductNotFound
	}
	return snap, nil
}

// Movements returns recorded movements for a product, oldest first.
func (m *MemoryLedger) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Movement
	for _, mv := range m.movements {
		if filter.ProductID != 0 && mv.ProductID != filter.ProductID {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (m *MemoryLedger) apply(productID int64, qty float64, kind MovementKind, ref Ref, fn func(*Snapshot) error, qtyIn, qtyOut float64) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[productID]
	if !ok {
		return Snapshot{}, ErrProductNotFound
	}
	if err := fn(&snap); err != nil {
		return Snapshot{}, err
	}
	m.snapshots[productID] = snap
	m.nextID++
	m.movements = append(m.movements, Movement{
		ID:               m.nextID,
		ProductID:        productID,
		Kind:             kind,
		QtyIn:            qtyIn,
		QtyOut:           qtyOut,
		BalanceAvailable: snap.Available,
		BalanceReserved:  snap.Reserved,
		RefModule:        ref.Module,
		RefID:            ref.ID,
		Note:             ref.Note,
		PostedAt:         time.Now(),
	})
	return snap, nil
}
