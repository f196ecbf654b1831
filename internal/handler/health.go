package handler

import (
	"net/http"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/infra"
)

// HealthHandler returns a health check endpoint. A nil pinger reports healthy.
func HealthHandler(p infra.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := infra.HealthCheck(r.Context(), p); err != nil {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":     false,
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		RespondOK(w, map[string]any{"status": "healthy"})
	}
}

// NotFound answers unmatched routes with the structured error body and the path.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	RespondJSON(w, http.StatusNotFound, map[string]any{
		"ok":      false,
		"code":    "NOT_FOUND",
		"message": "Not found",
		"path":    r.URL.Path,
	})
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	RespondError(w, &domain.AppError{
		Code:    "METHOD_NOT_ALLOWED",
		Message: r.Method + " is not allowed on " + r.URL.Path,
		Status:  http.StatusMethodNotAllowed,
	})
}
