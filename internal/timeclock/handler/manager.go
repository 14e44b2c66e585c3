package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/timeclock/models"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/httputil"
)

type loginRequest struct {
	Passcode string `json:"passcode"`
}

type employeesResponse struct {
	Employees []models.Employee `json:"employees"`
}

type eventsResponse struct {
	Events []models.EventRecord `json:"events"`
}

type syncResponse struct {
	Synced int `json:"synced"`
}

type auditResponse struct {
	Events []audit.Event `json:"events"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid login request", err)
		return
	}
	token, err := h.svc.Login(ctx, req.Passcode)
	h.metrics.IncrementManagerLogin(err == nil)
	if err != nil {
		h.writeError(ctx, w, "manager login rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, token)
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.EmployeeStatus(strings.ToLower(r.URL.Query().Get("status")))
	employees, err := h.svc.ListEmployees(ctx, status)
	if err != nil {
		h.writeError(ctx, w, "failed to list employees", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, employeesResponse{Employees: employees})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.svc.Approve(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "failed to approve employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.svc.Disable(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "failed to disable employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(ctx, w, "invalid events query", err)
		return
	}
	q := r.URL.Query()
	events, err := h.svc.ListEvents(ctx, models.EventFilter{
		EmployeeRef: q.Get("employee"),
		Type:        models.EventType(q.Get("type")),
		Limit:       limit,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to list events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handleExport buffers the CSV so a failure can still produce an error envelope.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(ctx, &buf); err != nil {
		h.writeError(ctx, w, "failed to export events", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(ctx)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export", "error", err)
	}
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.svc.Sync(ctx)
	if err != nil {
		h.writeError(ctx, w, "sync rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, syncResponse{Synced: n})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(ctx, w, "invalid audit query", err)
		return
	}
	events, err := h.svc.Audit(ctx, limit)
	if err != nil {
		h.writeError(ctx, w, "failed to list audit events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{Events: events})
}

func badRequest(msg string) error {
	return dErrors.New(dErrors.CodeBadRequest, msg)
}
