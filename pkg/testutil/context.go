package testutil

import (
	"net/http"
	"time"

	id "careon/pkg/domain"
	"careon/pkg/requestcontext"
)

// WithUserID marks the request as authenticated by userID.
// This simulates what the auth middleware would do.
func WithUserID(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithAuth sets both the user and the role, as RequireAuth does.
func WithAuth(req *http.Request, userID id.UserID, role requestcontext.Role) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithAdmin authenticates the request as staff.
func WithAdmin(req *http.Request, userID id.UserID) *http.Request {
	return WithAuth(req, userID, requestcontext.RoleAdmin)
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
