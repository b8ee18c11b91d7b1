package products

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/httpx"
)

// MovementSource serves the per-product stock card.
type MovementSource interface {
	Movements(ctx context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error)
}

type Handler struct {
	logger    *slog.Logger
	service   *Service
	movements MovementSource
	validate  *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, movements MovementSource) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		movements: movements,
		validate:  validator.New(),
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/movements", h.StockCard)
	})
	r.Put("/master-products", h.UpsertMaster)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 50),
	}
	if raw := q.Get("type"); raw != "" {
		t := ProductType(raw)
		if !t.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Type", "type must be FG, RM or PM")
			return
		}
		filters.Type = t
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		filters.IsActive = &active
	}

	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Products: list, Total: total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// StockCard lists the movement history with running balances for one
// product. Read-only view over the ledger.
func (h *Handler) StockCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	filter := ledger.MovementFilter{
		ProductID: id,
		Limit:     queryInt(r, "limit", 200),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = t
		}
	}

	movements, err := h.movements.Movements(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, MovementsResponse{ProductID: id, Movements: movements})
}

func (h *Handler) UpsertMaster(w http.ResponseWriter, r *http.Request) {
	var req UpsertMasterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	result, err := h.service.UpsertMaster(r.Context(), MasterProduct{
		Name:        req.Name,
		Type:        ProductType(req.Type),
		DefaultUnit: req.DefaultUnit,
		IsActive:    active,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Product Not Found", err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Master Product", err.Error())
	default:
		h.logger.Error("masterdata request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
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
