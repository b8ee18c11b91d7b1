// Package orders implements the order lifecycle state machine and its
// coupling to the stock ledger.
package orders

import "errors"

// Status is the closed set of order lifecycle states.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusOnHold           Status = "On Hold"
	StatusAccepted         Status = "Accepted"
	StatusScheduled        Status = "Scheduled"
	StatusInProduction     Status = "In Production"
	StatusReadyForDispatch Status = "Ready for Dispatch"
	StatusDispatched       Status = "Dispatched"
	StatusCancelled        Status = "Cancelled"
	StatusRejected         Status = "Rejected"
	StatusReturned         Status = "Returned"
)

// ImpactMode says how a line item currently touches the stock counters. A
// line is in exactly one mode at any time; compensation on cancellation must
// match the mode exactly once.
type ImpactMode int

const (
	// ImpactNone means neither counter holds the line quantity.
	ImpactNone ImpactMode = iota
	// ImpactReserved means reserved_qty holds the quantity.
	ImpactReserved
	// ImpactCommitted means available_qty has been debited and the prior
	// reservation released.
	ImpactCommitted
)

// ImpactMode returns the inventory impact of an order sitting in s.
func (s Status) ImpactMode() ImpactMode {
	switch s {
	case StatusAccepted, StatusScheduled, StatusInProduction:
		return ImpactReserved
	case StatusReadyForDispatch, StatusDispatched:
		return ImpactCommitted
	default:
		return ImpactNone
	}
}

// IsCancelledFamily reports whether s is one of the terminal compensated
// states.
func (s Status) IsCancelledFamily() bool {
	switch s {
	case StatusCancelled, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusOnHold, StatusAccepted, StatusScheduled,
		StatusInProduction, StatusReadyForDispatch, StatusDispatched,
		StatusCancelled, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// CancellableStatuses is the set listed by the cancellable orders view.
var CancellableStatuses = []Status{
	StatusPending, StatusOnHold, StatusAccepted, StatusScheduled,
	StatusInProduction, StatusReadyForDispatch,
}

// transitions is the explicit reachability table. Adding a status forces
// every rule here to be revisited.
var transitions = map[Status][]Status{
	StatusPending:          {StatusOnHold, StatusAccepted, StatusScheduled, StatusInProduction, StatusCancelled, StatusRejected},
	StatusOnHold:           {StatusPending, StatusAccepted, StatusScheduled, StatusInProduction, StatusCancelled, StatusRejected},
	StatusAccepted:         {StatusScheduled, StatusInProduction, StatusReadyForDispatch, StatusCancelled, StatusRejected},
	StatusScheduled:        {StatusInProduction, StatusReadyForDispatch, StatusCancelled, StatusRejected},
	StatusInProduction:     {StatusReadyForDispatch, StatusCancelled, StatusRejected},
	StatusReadyForDispatch: {StatusDispatched, StatusCancelled, StatusReturned},
	StatusDispatched:       {StatusCancelled, StatusReturned},
	StatusCancelled:        nil,
	StatusRejected:         nil,
	StatusReturned:         nil,
}

// CanTransition reports whether to is reachable from from.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LedgerEffect names the compensating or advancing ledger action a
// transition carries, per line item.
type LedgerEffect int

const (
	// EffectNone leaves the counters alone.
	EffectNone LedgerEffect = iota
	// EffectReserve soft-reserves the line quantity.
	EffectReserve
	// EffectRelease releases the soft reservation.
	EffectRelease
	// EffectCommit converts the reservation into a stock deduction.
	EffectCommit
	// EffectRestore credits committed stock back.
	EffectRestore
)

// EffectFor returns the ledger effect of moving from one status to another.
// The effect depends on the modes on both sides so compensation always
// matches the current impact exactly once.
func EffectFor(from, to Status) LedgerEffect {
	fromMode := from.ImpactMode()
	if to.IsCancelledFamily() {
		switch fromMode {
		case ImpactReserved:
			return EffectRelease
		case ImpactCommitted:
			return EffectRestore
		default:
			return EffectNone
		}
	}
	toMode := to.ImpactMode()
	switch {
	case fromMode == ImpactNone && toMode == ImpactReserved:
		return EffectReserve
	case fromMode == ImpactReserved && toMode == ImpactCommitted:
		return EffectCommit
	default:
		return EffectNone
	}
}

var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrInvalidTransition indicates the requested status is not reachable.
	ErrInvalidTransition = errors.New("orders: invalid status transition")
	// ErrOrderAlreadyCancelled guards against double compensation.
	ErrOrderAlreadyCancelled = errors.New("orders: order already cancelled")
	// ErrMissingCancellationReason indicates a blank cancellation reason.
	ErrMissingCancellationReason = errors.New("orders: cancellation reason required")
	// ErrReturnUnconfirmed indicates a post-dispatch cancellation without the
	// explicit return-to-stock confirmation.
	ErrReturnUnconfirmed = errors.New("orders: dispatched order cancellation requires return confirmation")
	// ErrUnknownStatus indicates a status outside the closed set.
	ErrUnknownStatus = errors.New("orders: unknown status")
)
