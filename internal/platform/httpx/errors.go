package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-mfg/meridian-erp/internal/platform/db"
)

// Sentinel errors shared across handlers.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps shared errors to HTTP responses using RFC7807.
// Handlers map their own domain errors first and fall back to this.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, db.ErrConcurrentStockConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Concurrent Stock Mutation", "the operation conflicted with a concurrent update, retry")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
