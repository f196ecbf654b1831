package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rog/backend/internal/domain"
)

// Request body limits.
const (
	MaxBodyBytes   = 1 << 20
	MaxUploadBytes = 8 << 20
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// RespondOK writes a 200 success body. fields are merged next to "ok": true.
func RespondOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	RespondJSON(w, http.StatusOK, body)
}

// RespondError writes a JSON error response, detecting domain.AppError for status codes.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		body := map[string]any{
			"ok":      false,
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if appErr.Detail != "" {
			body["detail"] = appErr.Detail
		}
		RespondJSON(w, appErr.Status, body)
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]any{
		"ok":      false,
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

// DecodeJSON reads and decodes a JSON request body of at most MaxBodyBytes into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return decodeLimited(w, r, dst, MaxBodyBytes)
}

// DecodeUpload is DecodeJSON with the larger upload limit.
func DecodeUpload(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return decodeLimited(w, r, dst, MaxUploadBytes)
}

func decodeLimited(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) error {
	if r.Body == nil {
		return domain.ErrValidation("missing request body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.ErrValidation(fmt.Sprintf("request body exceeds %d bytes", limit))
		case errors.Is(err, io.EOF):
			return domain.ErrValidation("missing request body")
		default:
			return domain.ErrValidation("invalid request body").WithDetail(err.Error())
		}
	}
	return nil
}
