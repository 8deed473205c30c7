package orders_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrOrderNotFound), errors.Is(err, reconcile.ErrNoTracking):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrAlreadyAssigned), errors.Is(err, reconcile.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Get().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
