package orders

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerID int64                    `json:"customer_id" validate:"required,gt=0"`
	Notes      *string                  `json:"notes,omitempty"`
	Lines      []CreateOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateOrderLineRequest is one line of CreateOrderRequest.
type CreateOrderLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Unit      string  `json:"unit" validate:"required,max=20"`
}

// TransitionRequest is the payload for PATCH /orders/{id}/status.
type TransitionRequest struct {
	Status        string `json:"status" validate:"required"`
	Reason        string `json:"reason,omitempty"`
	ConfirmReturn bool   `json:"confirm_return,omitempty"`
}

// CancelRequest is the payload for PATCH /cancel-order/{orderID}/cancel.
type CancelRequest struct {
	Reason        string `json:"reason" validate:"required"`
	ConfirmReturn bool   `json:"confirm_return,omitempty"`
}

// ListResponse wraps a page of orders.
type ListResponse struct {
	Orders []OrderWithCustomer `json:"orders"`
	Total  int                 `json:"total"`
}
