package auth

import (
	"log/slog"
	"net/http"

	"timeclock/internal/timeclock/session"
	"timeclock/pkg/platform/httputil"
	"timeclock/pkg/platform/middleware/request"
	"timeclock/pkg/requestcontext"
)

// SessionValidator validates a manager session token.
type SessionValidator interface {
	Validate(token string) (*session.Claims, error)
}

// RequireManager rejects requests without a valid manager bearer token and
// stores the session subject in the context.
func RequireManager(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, err := session.FromAuthorizationHeader(r.Header.Get("Authorization"))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			ctx = requestcontext.WithManager(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
