package handler

import (
	"net/http"
	"strings"

	"timeclock/internal/timeclock/models"
	"timeclock/pkg/platform/httputil"
)

type enrollRequest struct {
	Token string `json:"token"`
}

type passcodeRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.svc.Settings(ctx)
	if err != nil {
		h.writeError(ctx, w, "failed to load settings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var upd models.SettingsUpdate
	if err := httputil.DecodeJSON(w, r, &upd); err != nil {
		h.writeError(ctx, w, "invalid settings request", err)
		return
	}
	view, err := h.svc.UpdateSettings(ctx, upd)
	if err != nil {
		h.writeError(ctx, w, "failed to update settings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req enrollRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid enroll request", err)
		return
	}
	view, err := h.svc.Enroll(ctx, req.Token)
	if err != nil {
		h.writeError(ctx, w, "enrollment rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.svc.Unenroll(ctx)
	if err != nil {
		h.writeError(ctx, w, "failed to unenroll", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleChangePasscode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req passcodeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, "invalid passcode request", err)
		return
	}
	if strings.TrimSpace(req.Current) == "" {
		h.writeError(ctx, w, "invalid passcode request", badRequest("current passcode is required"))
		return
	}
	if err := h.svc.ChangePasscode(ctx, req.Current, req.Next); err != nil {
		h.writeError(ctx, w, "passcode change rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
