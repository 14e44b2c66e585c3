// Package ratelimit throttles kiosk traffic per client and locks out repeated
// manager passcode failures.
package ratelimit

import "time"

// Result is the outcome of a single sliding-window check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until a request would be admitted again.
	RetryAfter int
}

// Policy bounds requests per client within a sliding window.
type Policy struct {
	Name     string
	Requests int
	Window   time.Duration
}

var (
	// KioskPolicy covers the unauthenticated kiosk endpoints. Codes are short,
	// so lookups are bounded to slow enumeration.
	KioskPolicy = Policy{Name: "kiosk", Requests: 60, Window: time.Minute}
	// LoginPolicy covers the manager login endpoint.
	LoginPolicy = Policy{Name: "login", Requests: 10, Window: time.Minute}
)

// LockoutConfig controls passcode failure lockout.
type LockoutConfig struct {
	MaxFailures  int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailures:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

// Lockout tracks consecutive passcode failures for one key.
type Lockout struct {
	Key            string     `json:"key"`
	FailureCount   int        `json:"failure_count"`
	FirstFailureAt time.Time  `json:"first_failure_at"`
	LastFailureAt  time.Time  `json:"last_failure_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// windowExpiredAt reports whether the failure window has lapsed, after which
// counting starts over.
func (l *Lockout) windowExpiredAt(now time.Time, window time.Duration) bool {
	return !l.FirstFailureAt.IsZero() && now.Sub(l.FirstFailureAt) > window
}
