package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timeclock/internal/platform/metrics"
	"timeclock/internal/timeclock/export"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/session"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/httputil"
	"timeclock/pkg/platform/middleware/auth"
	"timeclock/pkg/platform/middleware/request"
	"timeclock/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the kiosk application port used by the HTTP layer.
type Service interface {
	Status(ctx context.Context) (*models.KioskStatus, error)
	Lookup(ctx context.Context, code string) (*models.Employee, error)
	Clock(ctx context.Context, req models.ClockRequest) (*models.EventRecord, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.Employee, error)

	Login(ctx context.Context, passcode string) (*session.Token, error)
	ListEmployees(ctx context.Context, status models.EmployeeStatus) ([]models.Employee, error)
	Approve(ctx context.Context, id string) (*models.Employee, error)
	Disable(ctx context.Context, id string) (*models.Employee, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.EventRecord, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Sync(ctx context.Context) (int, error)
	Audit(ctx context.Context, limit int) ([]audit.Event, error)

	Settings(ctx context.Context) (*models.SettingsView, error)
	UpdateSettings(ctx context.Context, upd models.SettingsUpdate) (*models.SettingsView, error)
	Enroll(ctx context.Context, token string) (*models.SettingsView, error)
	Unenroll(ctx context.Context) (*models.SettingsView, error)
	ChangePasscode(ctx context.Context, current, next string) error
}

// Handler serves the kiosk and manager HTTP API.
type Handler struct {
	svc      Service
	sessions auth.SessionValidator
	logger   *slog.Logger
	metrics  *metrics.Metrics

	kioskLimit func(http.Handler) http.Handler
	loginLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithKioskLimit throttles the unauthenticated /kiosk routes.
func WithKioskLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.kioskLimit = mw
		}
	}
}

// WithLoginLimit throttles POST /manager/login.
func WithLoginLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.loginLimit = mw
		}
	}
}

// New creates a Handler. metrics may be nil.
func New(svc Service, sessions auth.SessionValidator, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		svc:        svc,
		sessions:   sessions,
		logger:     logger,
		metrics:    m,
		kioskLimit: passthrough,
		loginLimit: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// Register mounts the /kiosk and /manager routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/kiosk", func(r chi.Router) {
		r.Use(h.kioskLimit)
		r.Get("/status", h.handleStatus)
		r.Post("/lookup", h.handleLookup)
		r.Post("/clock", h.handleClock)
		r.Post("/register", h.handleRegister)
	})

	r.Route("/manager", func(r chi.Router) {
		r.With(h.loginLimit).Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireManager(h.sessions, h.logger))

			r.Get("/employees", h.handleListEmployees)
			r.Post("/employees/{id}/approve", h.handleApprove)
			r.Post("/employees/{id}/disable", h.handleDisable)
			r.Get("/events", h.handleListEvents)
			r.Get("/events/export.csv", h.handleExport)
			r.Post("/sync", h.handleSync)
			r.Get("/audit", h.handleAudit)

			r.Get("/settings", h.handleGetSettings)
			r.Put("/settings", h.handleUpdateSettings)
			r.Post("/settings/enroll", h.handleEnroll)
			r.Post("/settings/unenroll", h.handleUnenroll)
			r.Put("/settings/passcode", h.handleChangePasscode)
		})
	})
}

// writeError logs at a level matching the status and writes the envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	if de, ok := dErrors.As(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
	}
	attrs := []any{"error", err, "request_id", request.GetRequestID(ctx)}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, key+" must be a non-negative integer")
	}
	return n, nil
}

func exportFilename(ctx context.Context) string {
	return export.Filename(requestcontext.Now(ctx))
}
