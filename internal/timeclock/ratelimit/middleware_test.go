package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"timeclock/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func newLimitedRouter(store WindowStore, policy Policy, opts ...Option) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.With(NewMiddleware(store, logger, opts...).Limit(policy)).Get("/kiosk/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func request(t *testing.T, ip string) *http.Request {
	req := testutil.NewJSONRequest(t, http.MethodGet, "/kiosk/status", nil)
	req = testutil.FromClient(req, ip, "")
	return testutil.At(req, base)
}

func TestMiddleware(t *testing.T) {
	policy := Policy{Name: "kiosk", Requests: 2, Window: time.Minute}

	t.Run("rejects beyond the policy with headers", func(t *testing.T) {
		r := newLimitedRouter(NewInMemoryWindowStore(), policy)

		rr := testutil.DoRequest(r, request(t, "10.0.0.1"))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

		testutil.DoRequest(r, request(t, "10.0.0.1"))
		rr = testutil.DoRequest(r, request(t, "10.0.0.1"))
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
		assert.Equal(t, "60", rr.Header().Get("Retry-After"))

		rr = testutil.DoRequest(r, request(t, "10.0.0.2"))
		assert.Equal(t, http.StatusOK, rr.Code, "other clients keep their own window")
	})

	t.Run("fails open when the store errors", func(t *testing.T) {
		r := newLimitedRouter(failingStore{}, policy)
		rr := testutil.DoRequest(r, request(t, "10.0.0.1"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("disabled passes everything", func(t *testing.T) {
		r := newLimitedRouter(NewInMemoryWindowStore(), Policy{Name: "kiosk", Requests: 0, Window: time.Minute}, WithDisabled(true))
		rr := testutil.DoRequest(r, request(t, "10.0.0.1"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
