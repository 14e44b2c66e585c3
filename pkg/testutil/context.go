package testutil

import (
	"net/http"
	"time"

	"timeclock/pkg/requestcontext"
)

// AsManager marks the request as carrying an authenticated manager session,
// as auth.RequireManager would after validating a bearer token.
func AsManager(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithManager(req.Context(), subject))
}

// FromClient sets the client metadata the metadata middleware would derive.
func FromClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}

// At pins the request-scoped clock.
func At(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
