package production

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-mfg/meridian-erp/internal/bom"
	"github.com/meridian-mfg/meridian-erp/internal/ledger"
	"github.com/meridian-mfg/meridian-erp/internal/platform/httpx"
)

// Handler serves the production HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches the production routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/production", func(r chi.Router) {
		r.Post("/batches", h.StartBatch)
		r.Get("/batches/{id}", h.ShowBatch)
		r.Post("/batches/{id}/complete", h.CompleteBatch)
		r.Post("/batches/{id}/cancel", h.CancelBatch)
		r.Get("/feasibility", h.Feasibility)
	})
}

func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	var input StartBatchInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.StartBatch(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) ShowBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch id must be numeric")
		return
	}
	batch, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) CompleteBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch id must be numeric")
		return
	}
	var input CompleteBatchInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.CompleteBatch(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "batch id must be numeric")
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = httpx.DecodeJSON(r, &body)
	batch, err := h.service.CancelBatch(r.Context(), id, body.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) Feasibility(w http.ResponseWriter, r *http.Request) {
	masterProductID, err := strconv.ParseInt(r.URL.Query().Get("master_product_id"), 10, 64)
	if err != nil || masterProductID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "master_product_id must be a positive integer")
		return
	}
	plannedQty, err := strconv.ParseFloat(r.URL.Query().Get("planned_qty"), 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "planned_qty must be numeric")
		return
	}
	density, err := strconv.ParseFloat(r.URL.Query().Get("std_density"), 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "std_density must be numeric")
		return
	}

	result, err := h.service.Feasibility(r.Context(), masterProductID, plannedQty, density)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.Problem(w, http.StatusNotFound, "Batch Not Found", err.Error())
	case errors.Is(err, ErrBatchNotStarted):
		httpx.Problem(w, http.StatusConflict, "Batch Not Started", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, bom.ErrInvalidQuantity), errors.Is(err, bom.ErrInvalidDensity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ledger.ErrInsufficientMaterial):
		httpx.Problem(w, http.StatusConflict, "Insufficient Material", err.Error())
	case errors.Is(err, ledger.ErrProductNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Product", err.Error())
	default:
		h.logger.Error("production request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
