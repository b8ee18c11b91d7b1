package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-mfg/meridian-erp/internal/audit"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/httpx"
)

// TimelineSource serves the per-order audit trail.
type TimelineSource interface {
	Timeline(ctx context.Context, filter audit.TimelineFilter) ([]audit.Event, error)
}

// Handler serves the order lifecycle and cancellation HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	timeline TimelineSource
	validate *validator.Validate
}

// NewHandler constructs Handler. timeline may be nil.
func NewHandler(logger *slog.Logger, service *Service, timeline TimelineSource) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		timeline: timeline,
		validate: validator.New(),
	}
}

// MountRoutes attaches the order routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/timeline", h.Timeline)
		r.Patch("/{id}/status", h.Transition)
	})
	r.Route("/cancel-order", func(r chi.Router) {
		r.Get("/cancellable", h.ListCancellable)
		r.Get("/cancelled", h.ListCancelled)
		r.Get("/stats", h.CancellationStats)
		r.Patch("/{orderID}/cancel", h.Cancel)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListOrdersRequest{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := Status(status)
		if !s.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Status", "unknown status "+status)
			return
		}
		req.Statuses = []Status{s}
	}
	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Orders: list, Total: total})
}

// Timeline lists the audit trail for one order, newest first.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	if h.timeline == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "timeline is not available")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	events, err := h.timeline.Timeline(r.Context(), audit.TimelineFilter{
		OrderID:  id,
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order_id": id, "events": events})
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.Transition(r.Context(), id, Status(req.Status), TransitionOptions{
		Reason:        req.Reason,
		ActorID:       actorID(r),
		ConfirmReturn: req.ConfirmReturn,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be numeric")
		return
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}

	order, err := h.service.Cancel(r.Context(), id, req.Reason, actorID(r), req.ConfirmReturn)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ListCancellable(w http.ResponseWriter, r *http.Request) {
	list, total, err := h.service.Cancellable(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Orders: list, Total: total})
}

func (h *Handler) ListCancelled(w http.ResponseWriter, r *http.Request) {
	list, total, err := h.service.Cancelled(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Orders: list, Total: total})
}

func (h *Handler) CancellationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Order Not Found", err.Error())
	case errors.Is(err, ErrMissingCancellationReason):
		httpx.Problem(w, http.StatusBadRequest, "Missing Cancellation Reason", "a non-empty reason is required")
	case errors.Is(err, ErrReturnUnconfirmed):
		httpx.Problem(w, http.StatusBadRequest, "Return Confirmation Required", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrUnknownStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status Transition", err.Error())
	case errors.Is(err, ErrOrderAlreadyCancelled):
		httpx.Problem(w, http.StatusConflict, "Order Already Cancelled", err.Error())
	case errors.Is(err, ledger.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ledger.ErrProductNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Product", err.Error())
	default:
		h.logger.Error("orders request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorID(r *http.Request) int64 {
	// Authn is handled upstream; the gateway forwards the acting user id.
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
