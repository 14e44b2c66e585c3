package ratelimit

import (
	"context"
	"sync"
	"time"

	"timeclock/pkg/requestcontext"
)

// sweepInterval bounds how often Allow scans for idle keys.
const sweepInterval = time.Minute

type slidingWindow struct {
	stamps []time.Time
	span   time.Duration
}

// InMemoryWindowStore is a per-process sliding-window counter. Keys whose
// window has fully elapsed are dropped by a sweep piggybacked on Allow.
type InMemoryWindowStore struct {
	mu        sync.Mutex
	windows   map[string]*slidingWindow
	lastSweep time.Time
}

func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{windows: make(map[string]*slidingWindow)}
}

// Allow admits the request if fewer than limit requests were admitted for key
// within window, and records it when admitted.
func (s *InMemoryWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok {
		w = &slidingWindow{}
		s.windows[key] = w
	}
	w.span = window
	stamps := prune(w.stamps, now.Add(-window))
	if len(stamps) >= limit {
		w.stamps = stamps
		resetAt := now.Add(window)
		if len(stamps) > 0 {
			resetAt = stamps[0].Add(window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}
	stamps = append(stamps, now)
	w.stamps = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

func (s *InMemoryWindowStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// sweep removes keys with no admissions left inside their window.
func (s *InMemoryWindowStore) sweep(now time.Time) {
	for key, w := range s.windows {
		w.stamps = prune(w.stamps, now.Add(-w.span))
		if len(w.stamps) == 0 {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}

func (s *InMemoryWindowStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// prune drops timestamps at or before cutoff. stamps is sorted ascending.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second).Seconds())
	return max(secs, 1)
}
