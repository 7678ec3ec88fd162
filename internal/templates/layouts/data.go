// Package layouts provides typed context helpers for passing page data from
// handlers and middleware to templ components. Only simple types are stored
// so this package never imports plugin types.
//
// Data flow: Middleware → Echo Context → LayoutInjector → Go Context → templ
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyUserName  ctxKey = "layout_user_name"
	keyRequestID ctxKey = "layout_request_id"
)

// SetUserName stores the signed-in user's display name.
func SetUserName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyUserName, name)
}

// SetRequestID stores the request ID shown on error pages.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// IsAuthenticated returns true if a signed-in user was injected.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserName(ctx) != ""
}

// GetUserName returns the signed-in user's display name, or "".
func GetUserName(ctx context.Context) string {
	name, _ := ctx.Value(keyUserName).(string)
	return name
}

// GetRequestID returns the request ID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}
