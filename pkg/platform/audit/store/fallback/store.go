// Package fallback keeps the audit trail writable while the primary store is
// unavailable by diverting events to a secondary store behind a circuit breaker.
package fallback

import (
	"context"
	"log/slog"

	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/circuit"
)

// Backing is the store contract shared by primary and secondary.
type Backing interface {
	Append(ctx context.Context, event audit.Event) error
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Store struct {
	primary   Backing
	secondary Backing
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		if b != nil {
			s.breaker = b
		}
	}
}

func New(primary, secondary Backing, opts ...Option) *Store {
	s := &Store{
		primary:   primary,
		secondary: secondary,
		breaker:   circuit.New("audit-store"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes to the primary and diverts to the secondary when that fails.
// The primary is always attempted so the breaker can observe recovery.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	err := s.primary.Append(ctx, event)
	if err == nil {
		s.recordSuccess(ctx)
		return nil
	}
	s.recordFailure(ctx, err)
	return s.secondary.Append(ctx, event)
}

// ListRecent reads the secondary while the circuit is open.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.breaker.IsOpen() {
		return s.secondary.ListRecent(ctx, limit)
	}
	events, err := s.primary.ListRecent(ctx, limit)
	if err != nil {
		s.recordFailure(ctx, err)
		return s.secondary.ListRecent(ctx, limit)
	}
	return events, nil
}

func (s *Store) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *Store) recordFailure(ctx context.Context, err error) {
	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "audit store circuit opened, using fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
		return
	}
	s.logger.DebugContext(ctx, "audit store write failed", "error", err)
}

func (s *Store) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit store circuit closed, primary recovered",
			"breaker", s.breaker.Name(),
		)
	}
}
