package api

import "context"

// userKey carries the authenticated user ID set by authMiddleware.
type userKey struct{}

// UserIDFromContext returns the user ID stored by the auth middleware, or an
// empty string for requests that did not pass through it.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)

	return userID
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}
