package authz

import "context"

type contextKey int

const userContextKey contextKey = iota

// WithUser attaches the authenticated uid to ctx, for every LdapClient
// operation started from that request (spec.md §4.7 "taken from the
// request context").
func WithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userContextKey, uid)
}

// UserFromContext returns the uid attached by WithUser, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userContextKey).(string)
	return uid, ok && uid != ""
}
