// Package service orchestrates the kiosk, manager and settings flows over the
// record store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/timeclock/device"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/passcode"
	"timeclock/internal/timeclock/session"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/sentinel"
	"timeclock/pkg/requestcontext"
)

type DocumentStore interface {
	Snapshot(ctx context.Context) (*models.Document, error)
	Update(ctx context.Context, fn func(doc *models.Document) error) (*models.Document, error)
	PurgeRetention(ctx context.Context, doc *models.Document) (int, error)
}

type EventRecorder interface {
	Record(ctx context.Context, employee models.Employee, eventType models.EventType,
		evidence models.Evidence, image string) (*models.EventRecord, error)
}

type SessionIssuer interface {
	Issue(deviceID string) (*session.Token, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// LoginGuard throttles repeated passcode failures per key.
type LoginGuard interface {
	Check(ctx context.Context, key string) error
	RecordFailure(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

// PasscodeHasher digests and verifies the admin passcode.
type PasscodeHasher interface {
	Hash(code string) (string, error)
	Verify(code, hash string) error
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(code string) (string, error) { return passcode.Hash(code) }
func (bcryptHasher) Verify(code, hash string) error   { return passcode.Verify(code, hash) }

const defaultAuditLimit = 50

// Service implements every kiosk, manager and settings operation.
type Service struct {
	store          DocumentStore
	recorder       EventRecorder
	sessions       SessionIssuer
	hasher         PasscodeHasher
	auditPublisher AuditPublisher
	guard          LoginGuard
	logger         *slog.Logger
	newID          func() string
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithLoginGuard(guard LoginGuard) Option {
	return func(s *Service) {
		s.guard = guard
	}
}

func WithPasscodeHasher(hasher PasscodeHasher) Option {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithIDGenerator replaces uuid generation for employee ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a Service.
func New(store DocumentStore, recorder EventRecorder, sessions SessionIssuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		sessions: sessions,
		hasher:   bcryptHasher{},
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) snapshot(ctx context.Context) (*models.Document, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, storeError(err, "failed to load kiosk state")
	}
	return doc, nil
}

func (s *Service) update(ctx context.Context, msg string, fn func(doc *models.Document) error) (*models.Document, error) {
	doc, err := s.store.Update(ctx, fn)
	if err != nil {
		return nil, storeError(err, msg)
	}
	return doc, nil
}

// storeError passes domain errors raised inside a mutation through unchanged
// and codes everything else from the store.
func storeError(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "kiosk state changed concurrently, retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "subject", subject, "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return
	}
	reason := ""
	for i := 0; i+1 < len(attributes); i += 2 {
		if key, ok := attributes[i].(string); ok && key == "reason" {
			reason, _ = attributes[i+1].(string)
		}
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    string(event),
		Subject:   subject,
		ActorID:   requestcontext.Manager(ctx),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Client:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

// verifyPasscode checks code against the stored digest, honouring the login
// guard keyed by client IP.
func (s *Service) verifyPasscode(ctx context.Context, code, hash string) error {
	key := "passcode:" + requestcontext.ClientIP(ctx)
	if s.guard != nil {
		if err := s.guard.Check(ctx, key); err != nil {
			return err
		}
	}
	err := s.hasher.Verify(code, hash)
	if s.guard == nil {
		return err
	}
	if err != nil {
		if gerr := s.guard.RecordFailure(ctx, key); gerr != nil {
			s.logger.WarnContext(ctx, "failed to record passcode failure", "error", gerr)
		}
		return err
	}
	if gerr := s.guard.Clear(ctx, key); gerr != nil {
		s.logger.WarnContext(ctx, "failed to clear passcode failures", "error", gerr)
	}
	return nil
}

// normalizePasscode strips the whitespace kiosk keypads and pasted input add.
func normalizePasscode(code string) string {
	return strings.TrimSpace(code)
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
