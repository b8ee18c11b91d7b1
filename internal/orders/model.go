package orders

import "time"

// Order is a customer order moving through the lifecycle.
type Order struct {
	ID                 int64       `json:"id"`
	DocNumber          string      `json:"doc_number"`
	CustomerID         int64       `json:"customer_id"`
	Status             Status      `json:"status"`
	Notes              *string     `json:"notes,omitempty"`
	CancelledBy        *int64      `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	CreatedBy          int64       `json:"created_by"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	Lines              []OrderLine `json:"lines,omitempty"`
}

// OrderLine references a sellable product and a quantity.
type OrderLine struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
	LineOrder int     `json:"line_order"`
}

// OrderWithCustomer decorates a list row with the customer name.
type OrderWithCustomer struct {
	Order
	CustomerName string `json:"customer_name"`
}

// CancellationStats backs the cancellation dashboard counters.
type CancellationStats struct {
	TotalCancellable   int `json:"total_cancellable"`
	TotalCancelled     int `json:"total_cancelled"`
	CancelledToday     int `json:"cancelled_today"`
	CancelledThisMonth int `json:"cancelled_this_month"`
}
