package handler

import (
	"net/http"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/service"
)

// HuntHandler serves active sessions and hunt logs.
type HuntHandler struct {
	huntSvc *service.HuntService
}

// NewHuntHandler creates a new HuntHandler.
func NewHuntHandler(huntSvc *service.HuntService) *HuntHandler {
	return &HuntHandler{huntSvc: huntSvc}
}

// activeHuntView is a session as listed to staff; uid is the record id.
type activeHuntView struct {
	UID string `json:"uid"`
	domain.ActiveHunt
}

// ListActive handles GET /ld/active-hunts.
func (h *HuntHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	hunts, err := h.huntSvc.ListActive(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	active := make([]activeHuntView, 0, len(hunts))
	for _, hunt := range hunts {
		active = append(active, activeHuntView{UID: hunt.HunterID, ActiveHunt: hunt})
	}
	RespondOK(w, map[string]any{"active": active})
}

// StartActive handles PUT /ld/active-hunts/me.
func (h *HuntHandler) StartActive(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var loc domain.Location
	if err := DecodeJSON(w, r, &loc); err != nil {
		RespondError(w, err)
		return
	}
	hunt, err := h.huntSvc.StartActive(r.Context(), id, loc)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"active": activeHuntView{UID: hunt.HunterID, ActiveHunt: *hunt}})
}

// EndActive handles DELETE /ld/active-hunts/me.
func (h *HuntHandler) EndActive(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.huntSvc.EndActive(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"ended": id.Code})
}

// ListLogs handles GET /ld/hunt-logs?from=&to=&limit=.
func (h *HuntHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	q := r.URL.Query()
	logs, err := h.huntSvc.ListLogs(r.Context(), id, service.LogQuery{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Limit: q.Get("limit"),
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"logs": logs})
}

// CreateLog handles POST /ld/hunt-logs.
func (h *HuntHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var input service.HuntLogInput
	if err := DecodeJSON(w, r, &input); err != nil {
		RespondError(w, err)
		return
	}
	log, err := h.huntSvc.CreateLog(r.Context(), id, input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]any{"ok": true, "log": log})
}
