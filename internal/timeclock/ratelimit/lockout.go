package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	dErrors "timeclock/pkg/domain-errors"
	"timeclock/pkg/requestcontext"
)

// LockoutStore persists lockout records. Get returns nil for unknown keys.
type LockoutStore interface {
	Get(ctx context.Context, key string) (*Lockout, error)
	Put(ctx context.Context, record *Lockout) error
	Delete(ctx context.Context, key string) error
}

type InMemoryLockoutStore struct {
	mu      sync.Mutex
	records map[string]Lockout
}

func NewInMemoryLockoutStore() *InMemoryLockoutStore {
	return &InMemoryLockoutStore{records: make(map[string]Lockout)}
}

func (s *InMemoryLockoutStore) Get(_ context.Context, key string) (*Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *InMemoryLockoutStore) Put(_ context.Context, record *Lockout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key] = *record
	return nil
}

func (s *InMemoryLockoutStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Guard locks a key out after repeated passcode failures.
type Guard struct {
	store  LockoutStore
	config LockoutConfig
	logger *slog.Logger
}

type GuardOption func(*Guard)

func WithLockoutConfig(cfg LockoutConfig) GuardOption {
	return func(g *Guard) {
		g.config = cfg
	}
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGuard(store LockoutStore, opts ...GuardOption) *Guard {
	g := &Guard{
		store:  store,
		config: DefaultLockoutConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check returns a CodeRateLimited error while key is locked out.
func (g *Guard) Check(ctx context.Context, key string) error {
	record, err := g.store.Get(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lockout state")
	}
	if record == nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	if record.IsLockedAt(now) {
		return dErrors.New(dErrors.CodeRateLimited,
			fmt.Sprintf("too many failed attempts, retry in %ds", retryAfter(*record.LockedUntil, now)))
	}
	return nil
}

// RecordFailure counts a failed attempt and locks the key once MaxFailures
// is reached within Window.
func (g *Guard) RecordFailure(ctx context.Context, key string) error {
	record, err := g.store.Get(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lockout state")
	}
	now := requestcontext.Now(ctx)
	if record == nil || record.windowExpiredAt(now, g.config.Window) {
		record = &Lockout{Key: key, FirstFailureAt: now}
	}
	record.FailureCount++
	record.LastFailureAt = now

	if record.FailureCount >= g.config.MaxFailures && !record.IsLockedAt(now) {
		until := now.Add(g.config.LockDuration)
		record.LockedUntil = &until
		g.logger.WarnContext(ctx, "passcode lockout triggered",
			"key", key,
			"failures", record.FailureCount,
			"locked_until", until,
		)
	}
	if err := g.store.Put(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record passcode failure")
	}
	return nil
}

func (g *Guard) Clear(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout state")
	}
	return nil
}
