package server

import (
	"context"
	"net/http"
)

// UserIDHeader carries the caller's identity. Verification happens upstream
// at the app gateway; here the header is trusted as-is.
const UserIDHeader = "X-User-ID"

// AnonymousUser is assumed when no identity header is present.
const AnonymousUser = "anonymous"

type userIDKey struct{}

// IdentityMiddleware resolves the caller's user id from the identity header
// and stores it in the request context.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			userID = AnonymousUser
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		AddLogField(ctx, "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the caller's user id from context. Returns
// AnonymousUser when the middleware is absent.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return AnonymousUser
}
