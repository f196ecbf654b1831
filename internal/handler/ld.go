package handler

import (
	"net/http"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/service"
)

// DashboardHandler serves the association overview.
type DashboardHandler struct {
	dashboardSvc *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardSvc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Get handles GET /ld/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	d, err := h.dashboardSvc.Get(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{
		"ldId":           d.AssociationID,
		"ldName":         d.AssociationName,
		"usersCount":     d.UsersCount,
		"huntsThisMonth": d.HuntsThisMonth,
		"lastSync":       d.LastSync,
	})
}

// PointHandler serves map points.
type PointHandler struct {
	pointSvc *service.PointService
}

// NewPointHandler creates a new PointHandler.
func NewPointHandler(pointSvc *service.PointService) *PointHandler {
	return &PointHandler{pointSvc: pointSvc}
}

// List handles GET /ld/points.
func (h *PointHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	points, err := h.pointSvc.List(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"points": points})
}

type pointImportRequest struct {
	Rows []domain.PointImportRow `json:"rows"`
}

// Import handles POST /ld/points/import-csv. The client parses the file and
// posts its rows.
func (h *PointHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req pointImportRequest
	if err := DecodeUpload(w, r, &req); err != nil {
		RespondError(w, err)
		return
	}
	res, err := h.pointSvc.Import(r.Context(), id, req.Rows)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"processed": res.Processed, "skipped": res.Skipped})
}

// QuotaHandler serves the harvest plan import and the realization view.
type QuotaHandler struct {
	quotaSvc *service.QuotaService
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(quotaSvc *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaSvc: quotaSvc}
}

// Import handles POST /ld/odvzem-plan/import-excel?year=.
func (h *QuotaHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	year, err := domain.ParseYear(r.URL.Query().Get("year"))
	if err != nil {
		RespondError(w, err)
		return
	}
	var upload service.PlanUpload
	if err := DecodeUpload(w, r, &upload); err != nil {
		RespondError(w, err)
		return
	}
	n, err := h.quotaSvc.ImportWorkbook(r.Context(), id, year, upload)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"imported": n})
}

// View handles GET /ld/odvzem-view?year=.
func (h *QuotaHandler) View(w http.ResponseWriter, r *http.Request) {
	id, err := callerIdentity(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	year, err := domain.ParseYear(r.URL.Query().Get("year"))
	if err != nil {
		RespondError(w, err)
		return
	}
	view, err := h.quotaSvc.View(r.Context(), id, year)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondOK(w, map[string]any{"view": view})
}
