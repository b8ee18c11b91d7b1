package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// Repository persists stock counters and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction. The
// Ledger handed to fn shares the transaction, so callers can bundle ledger
// effects with their own writes and commit or roll back as one unit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Ledger) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txLedger{q: tx})
	})
}

// Bind returns a Ledger bound to an existing transaction, for services that
// manage their own transaction boundary.
func Bind(tx pgx.Tx) Ledger {
	return &txLedger{q: tx}
}

// Movements returns the stock card for a product, oldest first. Read-only;
// the reporting subsystem consumes this and must never write.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, kind, qty_in, qty_out, balance_available, balance_reserved, ref_module, ref_id, note, posted_at
FROM stock_movements
WHERE product_id=$1 AND posted_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $4`, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.QtyIn, &m.QtyOut, &m.BalanceAvailable, &m.BalanceReserved, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Snapshot reads counters outside any transaction.
func (r *Repository) Snapshot(ctx context.Context, productID int64) (Snapshot, error) {
	return snapshot(ctx, r.pool, productID)
}

type txLedger struct {
	q pgx.Tx
}

func (l *txLedger) SoftReserve(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := l.mutate(ctx, productID,
		`UPDATE products SET reserved_qty = reserved_qty + $2, updated_at = NOW()
WHERE id = $1 RETURNING available_qty, reserved_qty`, qty)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementReserve, 0, 0, ref)
}

func (l *txLedger) ReleaseReservation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	// Saturating: a release larger than the held reservation floors at zero.
	snap, err := l.mutate(ctx, productID,
		`UPDATE products SET reserved_qty = GREATEST(0, reserved_qty - $2), updated_at = NOW()
WHERE id = $1 RETURNING available_qty, reserved_qty`, qty)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementRelease, 0, 0, ref)
}

func (l *txLedger) CommitAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := l.mutateGuarded(ctx, productID,
		`UPDATE products SET available_qty = available_qty - $2, reserved_qty = GREATEST(0, reserved_qty - $2), updated_at = NOW()
WHERE id = $1 AND available_qty >= $2 RETURNING available_qty, reserved_qty`, qty, ErrInsufficientStock)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementCommit, 0, qty, ref)
}

func (l *txLedger) RestoreAllocation(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := l.mutate(ctx, productID,
		`UPDATE products SET available_qty = available_qty + $2, updated_at = NOW()
WHERE id = $1 RETURNING available_qty, reserved_qty`, qty)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementRestore, qty, 0, ref)
}

func (l *txLedger) CreditProduction(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := l.mutate(ctx, productID,
		`UPDATE products SET available_qty = available_qty + $2, updated_at = NOW()
WHERE id = $1 RETURNING available_qty, reserved_qty`, qty)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementProduce, qty, 0, ref)
}

func (l *txLedger) DebitConsumption(ctx context.Context, productID int64, qty float64, ref Ref) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := l.mutateGuarded(ctx, productID,
		`UPDATE products SET available_qty = available_qty - $2, updated_at = NOW()
WHERE id = $1 AND available_qty >= $2 RETURNING available_qty, reserved_qty`, qty, ErrInsufficientMaterial)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, l.record(ctx, snap, MovementConsume, 0, qty, ref)
}

func (l *txLedger) Snapshot(ctx context.Context, productID int64) (Snapshot, error) {
	return snapshot(ctx, l.q, productID)
}

func (l *txLedger) mutate(ctx context.Context, productID int64, query string, qty float64) (Snapshot, error) {
	snap := Snapshot{ProductID: productID}
	err := l.q.QueryRow(ctx, query, productID, qty).Scan(&snap.Available, &snap.Reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrProductNotFound
		}
		return Snapshot{}, err
	}
	return snap, nil
}

// mutateGuarded runs a conditional UPDATE; zero rows means either a missing
// product or a breached guard, distinguished with a follow-up read.
func (l *txLedger) mutateGuarded(ctx context.Context, productID int64, query string, qty float64, guardErr error) (Snapshot, error) {
	snap := Snapshot{ProductID: productID}
	err := l.q.QueryRow(ctx, query, productID, qty).Scan(&snap.Available, &snap.Reserved)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, err
	}
	if _, err := snapshot(ctx, l.q, productID); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{}, guardErr
}

func (l *txLedger) record(ctx context.Context, snap Snapshot, kind MovementKind, qtyIn, qtyOut float64, ref Ref) error {
	_, err := l.q.Exec(ctx, `INSERT INTO stock_movements (product_id, kind, qty_in, qty_out, balance_available, balance_reserved, ref_module, ref_id, note, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		snap.ProductID, string(kind), qtyIn, qtyOut, snap.Available, snap.Reserved, ref.Module, ref.ID, ref.Note)
	return err
}

type rowScanner interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func snapshot(ctx context.Context, q rowScanner, productID int64) (Snapshot, error) {
	snap := Snapshot{ProductID: productID}
	err := q.QueryRow(ctx, `SELECT available_qty, reserved_qty FROM products WHERE id = $1`, productID).
		Scan(&snap.Available, &snap.Reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrProductNotFound
		}
		return Snapshot{}, err
	}
	return snap, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
