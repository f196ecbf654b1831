package handler

import (
	"net/http"

	"github.com/rog/backend/internal/auth"
	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/service"
)

// AuthHandler handles login and association switching.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// callerIdentity returns the authenticated caller or a 401 error.
func callerIdentity(r *http.Request) (domain.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized("no auth context")
	}
	return id, nil
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondOK(w, map[string]any{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"user": id})
}

// ListAssociations handles GET /auth/lds.
func (h *AuthHandler) ListAssociations(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	lds, err := h.authSvc.ListAssociations(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"lds": lds})
}

type switchRequest struct {
	LdID string `json:"ldId"`
}

// SwitchAssociation handles POST /auth/switch-ld.
func (h *AuthHandler) SwitchAssociation(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req switchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.authSvc.SwitchAssociation(r.Context(), id, req.LdID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}
