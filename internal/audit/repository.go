package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends an event using the caller's transaction so the event commits
// or rolls back together with the transition it describes.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, event Event) error {
	if event.OrderID == 0 || event.Type == "" {
		return ErrMissingFields
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `INSERT INTO order_audit_events (id, order_id, event_type, from_status, to_status, reason, actor_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.OrderID, string(event.Type), event.FromStatus, event.ToStatus, event.Reason, event.ActorID, event.OccurredAt)
	return err
}

// Timeline returns events for an order, newest first, with paging.
func (r *Repository) Timeline(ctx context.Context, filter TimelineFilter) ([]Event, error) {
	if r == nil {
		return nil, errors.New("audit repository not initialised")
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, event_type, from_status, to_status, reason, actor_id, occurred_at
FROM order_audit_events
WHERE order_id = $1 AND occurred_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY occurred_at DESC, id DESC
LIMIT $4 OFFSET $5`, filter.OrderID, nullTime(filter.From), nullTime(filter.To), pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.OrderID, &eventType, &e.FromStatus, &e.ToStatus, &e.Reason, &e.ActorID, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
