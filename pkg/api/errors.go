package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/voidshard/cashster/pkg/domain"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, domain.ErrNoLocation),
		errors.Is(err, domain.ErrTooMuch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoAmount),
		errors.Is(err, domain.ErrNoPlace),
		errors.Is(err, domain.ErrFirstPlace),
		errors.Is(err, domain.ErrNotLocal),
		errors.Is(err, domain.ErrSyncRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, &errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and validates it, answering the request
// itself when that fails.
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, logger, fmt.Errorf("%w: %v", domain.ErrInvalid, err))
		return false
	}
	if err := domain.ValidateStruct(v); err != nil {
		writeError(w, logger, err)
		return false
	}
	return true
}
