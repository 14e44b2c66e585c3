package handler

import (
	"net/http"
	"time"

	"timeclock/internal/timeclock/models"
	"timeclock/pkg/platform/httputil"
)

type lookupRequest struct {
	Code string `json:"code"`
}

type lookupResponse struct {
	ID         string                `json:"id"`
	EmployeeID string                `json:"employeeId"`
	FirstName  string                `json:"firstName"`
	LastName   string                `json:"lastName"`
	Status     models.EmployeeStatus `json:"status"`
}

type clockResponse struct {
	ID         string           `json:"id"`
	Type       models.EventType `json:"type"`
	Timestamp  string           `json:"timestamp"`
	OfflineSeq int64            `json:"offlineSeq"`
	Synced     bool             `json:"synced"`
	HasSelfie  bool             `json:"hasSelfie"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.svc.Status(ctx)
	if err != nil {
		h.writeError(ctx, w, "failed to load kiosk status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req lookupRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid lookup request", err)
		return
	}
	emp, err := h.svc.Lookup(ctx, req.Code)
	if err != nil {
		h.writeError(ctx, w, "employee lookup rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lookupResponse{
		ID:         emp.ID,
		EmployeeID: emp.EmployeeID,
		FirstName:  emp.FirstName,
		LastName:   emp.LastName,
		Status:     emp.Status,
	})
}

func (h *Handler) handleClock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.ClockRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid clock request", err)
		return
	}
	ev, err := h.svc.Clock(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "clock rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, clockResponse{
		ID:         ev.ID,
		Type:       ev.Type,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
		OfflineSeq: ev.OfflineSeq,
		Synced:     ev.Synced,
		HasSelfie:  ev.HasImage(),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid registration request", err)
		return
	}
	emp, err := h.svc.Register(ctx, req)
	if err != nil {
		h.writeError(ctx, w, "registration rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, emp)
}
