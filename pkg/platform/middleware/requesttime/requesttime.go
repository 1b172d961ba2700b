// Package requesttime pins one "now" per request so every timestamp written
// while handling it (updated_at, submitted_at, reviewed_at) agrees.
package requesttime

import (
	"net/http"
	"time"

	"careon/pkg/requestcontext"
)

// Middleware pins the wall clock, in UTC, at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
