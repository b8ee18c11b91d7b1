package production

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// Repository persists production batches.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, batch Batch) (int64, error)
	Get(ctx context.Context, id int64) (*Batch, error)
}

// TxRepository is the transaction-bound slice of the repository.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Batch, error)
	InsertConsumed(ctx context.Context, consumed ConsumedMaterial) error
	InsertOutput(ctx context.Context, output SubProductOutput) error
	InsertVariance(ctx context.Context, variance Variance) error
	MarkCompleted(ctx context.Context, id int64, actualQty, actualDensity, actualViscosity float64) error
	MarkCancelled(ctx context.Context, id int64, reason string) error
	Ledger() ledger.Ledger
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Insert(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO production_batches
(code, master_product_id, product_id, planned_qty, standard_density, standard_viscosity, status, supervisor_id, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		batch.Code, batch.MasterProductID, batch.ProductID, batch.PlannedQty,
		batch.StandardDensity, batch.StandardViscosity, string(batch.Status), batch.SupervisorID, batch.StartedAt).
		Scan(&id)
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Batch, error) {
	return getBatch(ctx, r.pool, id, "")
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (*Batch, error) {
	return getBatch(ctx, r.tx, id, "FOR UPDATE")
}

func (r *txRepository) InsertConsumed(ctx context.Context, consumed ConsumedMaterial) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO batch_consumed_materials (batch_id, material_product_id, material_name, qty, unit)
VALUES ($1, $2, $3, $4, $5)`, consumed.BatchID, consumed.MaterialProductID, consumed.MaterialName, consumed.Qty, consumed.Unit)
	return err
}

func (r *txRepository) InsertOutput(ctx context.Context, output SubProductOutput) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO batch_outputs (batch_id, product_id, qty) VALUES ($1, $2, $3)`,
		output.BatchID, output.ProductID, output.Qty)
	return err
}

func (r *txRepository) InsertVariance(ctx context.Context, variance Variance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO batch_variances (batch_id, density_variance, viscosity_variance, weight_variance)
VALUES ($1, $2, $3, $4)`, variance.BatchID, variance.DensityVariance, variance.ViscosityVariance, variance.WeightVariance)
	return err
}

func (r *txRepository) MarkCompleted(ctx context.Context, id int64, actualQty, actualDensity, actualViscosity float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_batches
SET status = $2, actual_qty = $3, actual_density = $4, actual_viscosity = $5, completed_at = NOW()
WHERE id = $1`, id, string(BatchStatusCompleted), actualQty, actualDensity, actualViscosity)
	return err
}

func (r *txRepository) MarkCancelled(ctx context.Context, id int64, reason string) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_batches SET status = $2, cancellation_reason = $3 WHERE id = $1`,
		id, string(BatchStatusCancelled), reason)
	return err
}

func (r *txRepository) Ledger() ledger.Ledger {
	return ledger.Bind(r.tx)
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBatch(ctx context.Context, q rowQuerier, id int64, suffix string) (*Batch, error) {
	var b Batch
	var status string
	query := `SELECT id, code, master_product_id, product_id, planned_qty, COALESCE(actual_qty, 0), standard_density, COALESCE(actual_density, 0), standard_viscosity, COALESCE(actual_viscosity, 0), status, supervisor_id, started_at, completed_at
FROM production_batches WHERE id = $1 ` + suffix
	err := q.QueryRow(ctx, query, id).Scan(&b.ID, &b.Code, &b.MasterProductID, &b.ProductID, &b.PlannedQty, &b.ActualQty,
		&b.StandardDensity, &b.ActualDensity, &b.StandardViscosity, &b.ActualViscosity, &status, &b.SupervisorID, &b.StartedAt, &b.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	b.Status = BatchStatus(status)

	rows, err := q.Query(ctx, `SELECT id, batch_id, material_product_id, material_name, qty, unit FROM batch_consumed_materials WHERE batch_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c ConsumedMaterial
		if err := rows.Scan(&c.ID, &c.BatchID, &c.MaterialProductID, &c.MaterialName, &c.Qty, &c.Unit); err != nil {
			return nil, err
		}
		b.Consumed = append(b.Consumed, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outRows, err := q.Query(ctx, `SELECT id, batch_id, product_id, qty FROM batch_outputs WHERE batch_id = $1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer outRows.Close()
	for outRows.Next() {
		var o SubProductOutput
		if err := outRows.Scan(&o.ID, &o.BatchID, &o.ProductID, &o.Qty); err != nil {
			return nil, err
		}
		b.Outputs = append(b.Outputs, o)
	}
	return &b, outRows.Err()
}
