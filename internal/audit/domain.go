// Package audit records order lifecycle events in an append-only table.
// Events are typed variants, never free text parsed back out of prose.
package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the recorded event kinds.
type EventType string

const (
	// EventStatusChanged is any forward lifecycle transition.
	EventStatusChanged EventType = "STATUS_CHANGED"
	// EventOrderCancelled is a cancellation before dispatch.
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	// EventOrderRejected is a rejection before dispatch.
	EventOrderRejected EventType = "ORDER_REJECTED"
	// EventOrderReturnedToStock is a confirmed post-dispatch return. Logged
	// distinctly so warehouse reconciliation can review these separately.
	EventOrderReturnedToStock EventType = "ORDER_RETURNED_TO_STOCK"
)

// Event is one append-only audit row.
type Event struct {
	ID         uuid.UUID `json:"id"`
	OrderID    int64     `json:"order_id"`
	Type       EventType `json:"event_type"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    int64     `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TimelineFilter narrows the event query.
type TimelineFilter struct {
	OrderID  int64
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// ErrMissingFields indicates an event without its mandatory fields.
var ErrMissingFields = errors.New("audit: event requires order id and type")
