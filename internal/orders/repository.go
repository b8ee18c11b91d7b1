package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-mfg/meridian-erp/internal/audit"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// Repository exposes order persistence. Transition work happens through
// WithTx so the status update, ledger effects and audit event share one
// transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]OrderWithCustomer, int, error)
	Create(ctx context.Context, order Order) (int64, error)
	Stats(ctx context.Context, now time.Time) (CancellationStats, error)
}

// TxRepository is the transaction-bound slice of the repository.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, reason *string) error
	Ledger() ledger.Ledger
	RecordAudit(ctx context.Context, event audit.Event) error
}

// ListOrdersRequest filters the order list.
type ListOrdersRequest struct {
	Statuses   []Status
	CustomerID *int64
	Limit      int
	Offset     int
}

type repository struct {
	pool     *pgxpool.Pool
	auditLog *audit.Repository
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, auditLog *audit.Repository) Repository {
	return &repository{pool: pool, auditLog: auditLog}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, auditLog: r.auditLog})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, r.pool, id, "")
}

func (r *repository) Create(ctx context.Context, order Order) (int64, error) {
	var orderID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		docNumber, err := generateDocNumber(ctx, tx, time.Now())
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		err = tx.QueryRow(ctx, `INSERT INTO orders (doc_number, customer_id, status, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
			docNumber, order.CustomerID, string(order.Status), order.Notes, order.CreatedBy).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, line := range order.Lines {
			lineOrder := line.LineOrder
			if lineOrder == 0 {
				lineOrder = i + 1
			}
			_, err := tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, quantity, unit, line_order)
VALUES ($1, $2, $3, $4, $5)`, orderID, line.ProductID, line.Quantity, line.Unit, lineOrder)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithCustomer, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if len(req.Statuses) > 0 {
		placeholders := make([]string, len(req.Statuses))
		for i, s := range req.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argPos)
			args = append(args, string(s))
			argPos++
		}
		conditions = append(conditions, fmt.Sprintf("o.status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM orders o %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT o.id, o.doc_number, o.customer_id, o.status, o.notes, o.cancelled_by, o.cancelled_at, o.cancellation_reason, o.created_by, o.created_at, o.updated_at, c.name
FROM orders o
JOIN customers c ON c.id = o.customer_id
%s
ORDER BY o.created_at DESC, o.id DESC
LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []OrderWithCustomer{}
	for rows.Next() {
		var o OrderWithCustomer
		var status string
		if err := rows.Scan(&o.ID, &o.DocNumber, &o.CustomerID, &status, &o.Notes, &o.CancelledBy, &o.CancelledAt, &o.CancellationReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.CustomerName); err != nil {
			return nil, 0, err
		}
		o.Status = Status(status)
		result = append(result, o)
	}
	return result, total, rows.Err()
}

func (r *repository) Stats(ctx context.Context, now time.Time) (CancellationStats, error) {
	cancellable := make([]string, len(CancellableStatuses))
	for i, s := range CancellableStatuses {
		cancellable[i] = string(s)
	}
	var stats CancellationStats
	err := r.pool.QueryRow(ctx, `SELECT
COUNT(*) FILTER (WHERE status = ANY($1)),
COUNT(*) FILTER (WHERE status = $2),
COUNT(*) FILTER (WHERE status = $2 AND cancelled_at::date = $3::date),
COUNT(*) FILTER (WHERE status = $2 AND date_trunc('month', cancelled_at) = date_trunc('month', $3::timestamptz))
FROM orders`, cancellable, string(StatusCancelled), now).
		Scan(&stats.TotalCancellable, &stats.TotalCancelled, &stats.CancelledToday, &stats.CancelledThisMonth)
	if err != nil {
		return CancellationStats{}, err
	}
	return stats, nil
}

type txRepository struct {
	tx       pgx.Tx
	auditLog *audit.Repository
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, r.tx, id, "FOR UPDATE")
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, actorID int64, reason *string) error {
	if status.IsCancelledFamily() {
		_, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, cancelled_by = $3, cancelled_at = NOW(), cancellation_reason = $4, updated_at = NOW() WHERE id = $1`,
			id, string(status), actorID, reason)
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

func (r *txRepository) Ledger() ledger.Ledger {
	return ledger.Bind(r.tx)
}

func (r *txRepository) RecordAudit(ctx context.Context, event audit.Event) error {
	return r.auditLog.Record(ctx, r.tx, event)
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getOrder(ctx context.Context, q rowQuerier, id int64, suffix string) (*Order, error) {
	var o Order
	var status string
	query := `SELECT id, doc_number, customer_id, status, notes, cancelled_by, cancelled_at, cancellation_reason, created_by, created_at, updated_at FROM orders WHERE id = $1 ` + suffix
	err := q.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.DocNumber, &o.CustomerID, &status, &o.Notes, &o.CancelledBy, &o.CancelledAt, &o.CancellationReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = Status(status)

	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, quantity, unit, line_order FROM order_lines WHERE order_id = $1 ORDER BY line_order ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Unit, &line.LineOrder); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, line)
	}
	return &o, rows.Err()
}

func generateDocNumber(ctx context.Context, tx pgx.Tx, date time.Time) (string, error) {
	prefix := fmt.Sprintf("SO-%s", date.Format("200601"))
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM orders WHERE doc_number LIKE $1`, prefix+"-%").Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", prefix, n), nil
}
