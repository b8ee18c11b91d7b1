package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-mfg/meridian-erp/internal/audit"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/cache"
	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// Metrics is the slice of observability the service reports into.
type Metrics interface {
	OrderTransitionApplied(from, to string)
	StockConflict()
}

// Service validates and executes order lifecycle transitions.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics Metrics
	stats   *cache.JSONCache
}

// NewService builds Service. metrics and stats may be nil.
func NewService(repo Repository, logger *slog.Logger, metrics Metrics, stats *cache.JSONCache) *Service {
	return &Service{repo: repo, logger: logger, metrics: metrics, stats: stats}
}

// TransitionOptions carries the optional transition inputs.
type TransitionOptions struct {
	Reason        string
	ActorID       int64
	ConfirmReturn bool
}

const statsCacheKey = "orders:cancellation_stats"

// Transition moves an order to newStatus, applying the matching ledger
// effect per line item atomically with the status update and the audit event.
func (s *Service) Transition(ctx context.Context, orderID int64, newStatus Status, opts TransitionOptions) (*Order, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	reason := strings.TrimSpace(opts.Reason)

	var fromStatus Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		order, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		fromStatus = order.Status

		// Idempotency guard: the check runs inside the same transaction that
		// would apply compensation, so two racing cancels cannot both pass.
		if order.Status.IsCancelledFamily() {
			if newStatus.IsCancelledFamily() {
				return ErrOrderAlreadyCancelled
			}
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
		}
		if !CanTransition(order.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
		}
		if newStatus.IsCancelledFamily() {
			if reason == "" {
				return ErrMissingCancellationReason
			}
			if order.Status == StatusDispatched && !opts.ConfirmReturn {
				return ErrReturnUnconfirmed
			}
		}

		led := repo.Ledger()
		ref := ledger.Ref{Module: "orders", ID: order.DocNumber, Note: reason}
		effect := EffectFor(order.Status, newStatus)
		for _, line := range order.Lines {
			if err := applyEffect(ctx, led, effect, line, ref); err != nil {
				return fmt.Errorf("line %d: %w", line.ID, err)
			}
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := repo.UpdateStatus(ctx, orderID, newStatus, opts.ActorID, reasonPtr); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		event := audit.Event{
			OrderID:    orderID,
			Type:       eventTypeFor(order.Status, newStatus),
			FromStatus: string(order.Status),
			ToStatus:   string(newStatus),
			Reason:     reason,
			ActorID:    opts.ActorID,
		}
		if err := repo.RecordAudit(ctx, event); err != nil {
			return fmt.Errorf("record audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil && errors.Is(err, db.ErrConcurrentStockConflict) {
			s.metrics.StockConflict()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrderTransitionApplied(string(fromStatus), string(newStatus))
	}
	if newStatus.IsCancelledFamily() {
		if err := s.stats.Invalidate(ctx, statsCacheKey); err != nil && s.logger != nil {
			s.logger.Warn("invalidate stats cache", slog.Any("error", err))
		}
	}
	if s.logger != nil {
		s.logger.Info("order transition applied",
			slog.Int64("order_id", orderID),
			slog.String("from", string(fromStatus)),
			slog.String("to", string(newStatus)))
	}
	return s.repo.Get(ctx, orderID)
}

// Cancel is the cancellation entry point used by the cancel-order surface.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string, actorID int64, confirmReturn bool) (*Order, error) {
	return s.Transition(ctx, orderID, StatusCancelled, TransitionOptions{
		Reason:        reason,
		ActorID:       actorID,
		ConfirmReturn: confirmReturn,
	})
}

// Create registers a new order in Pending state with no inventory impact.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, createdBy int64) (*Order, error) {
	order := Order{
		CustomerID: req.CustomerID,
		Status:     StatusPending,
		Notes:      req.Notes,
		CreatedBy:  createdBy,
	}
	for i, line := range req.Lines {
		order.Lines = append(order.Lines, OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
			LineOrder: i + 1,
		})
	}
	id, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithCustomer, int, error) {
	return s.repo.List(ctx, req)
}

// Cancellable lists orders whose status allows cancellation.
func (s *Service) Cancellable(ctx context.Context, limit, offset int) ([]OrderWithCustomer, int, error) {
	return s.repo.List(ctx, ListOrdersRequest{Statuses: CancellableStatuses, Limit: limit, Offset: offset})
}

// Cancelled lists cancelled orders.
func (s *Service) Cancelled(ctx context.Context, limit, offset int) ([]OrderWithCustomer, int, error) {
	return s.repo.List(ctx, ListOrdersRequest{Statuses: []Status{StatusCancelled}, Limit: limit, Offset: offset})
}

// Stats returns the cancellation counters, cached for a short window.
func (s *Service) Stats(ctx context.Context) (CancellationStats, error) {
	var stats CancellationStats
	err := s.stats.FetchJSON(ctx, statsCacheKey, &stats, func(ctx context.Context) (any, error) {
		return s.repo.Stats(ctx, time.Now())
	})
	if err != nil {
		return CancellationStats{}, err
	}
	return stats, nil
}

func applyEffect(ctx context.Context, led ledger.Ledger, effect LedgerEffect, line OrderLine, ref ledger.Ref) error {
	ref.ID = ref.ID + "#" + strconv.Itoa(line.LineOrder)
	var err error
	switch effect {
	case EffectReserve:
		_, err = led.SoftReserve(ctx, line.ProductID, line.Quantity, ref)
	case EffectRelease:
		_, err = led.ReleaseReservation(ctx, line.ProductID, line.Quantity, ref)
	case EffectCommit:
		_, err = led.CommitAllocation(ctx, line.ProductID, line.Quantity, ref)
	case EffectRestore:
		_, err = led.RestoreAllocation(ctx, line.ProductID, line.Quantity, ref)
	}
	return err
}

func eventTypeFor(from, to Status) audit.EventType {
	switch to {
	case StatusRejected:
		return audit.EventOrderRejected
	case StatusReturned:
		return audit.EventOrderReturnedToStock
	case StatusCancelled:
		if from == StatusDispatched {
			// Post-dispatch cancellation restores stock for goods that may
			// already have left the warehouse; keep it distinguishable.
			return audit.EventOrderReturnedToStock
		}
		return audit.EventOrderCancelled
	default:
		return audit.EventStatusChanged
	}
}
