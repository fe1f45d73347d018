package authctx

import "context"

type contextKey string

const userContextKey contextKey = "currentUser"

// CurrentUser is the caller as proven by the session token. Its role is
// resolved from the profile table on demand, never from the token.
type CurrentUser struct {
	ID    string
	Email string
}

func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func FromContext(ctx context.Context) *CurrentUser {
	val, ok := ctx.Value(userContextKey).(CurrentUser)
	if !ok {
		return nil
	}
	return &val
}
