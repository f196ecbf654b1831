package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rog/backend/internal/service"
)

// MemberHandler manages the accounts of the caller's association.
type MemberHandler struct {
	memberSvc *service.MemberService
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(memberSvc *service.MemberService) *MemberHandler {
	return &MemberHandler{memberSvc: memberSvc}
}

// List handles GET /ld/users.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	users, err := h.memberSvc.List(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"users": users})
}

// Create handles POST /ld/users. The PIN is returned once.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var input service.CreateMemberInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	created, err := h.memberSvc.Create(r.Context(), id, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"user": created.User, "pin": created.PIN})
}

// Update handles PATCH /ld/users/{code}.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var input service.UpdateMemberInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}

	code := chi.URLParam(r, "code")
	user, err := h.memberSvc.Update(r.Context(), id, code, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"code": user.Code, "patch": input, "user": user})
}

// Delete handles DELETE /ld/users/{code}.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.memberSvc.Delete(r.Context(), id, code); err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"deleted": code})
}

// ResetPIN handles POST /ld/users/{code}/reset-pin.
func (h *MemberHandler) ResetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	code := chi.URLParam(r, "code")
	pin, err := h.memberSvc.ResetPIN(r.Context(), id, code)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"code": code, "pin": pin})
}
