package middleware

import "context"

type contextKey struct{ name string }

var (
	accountIDKey = contextKey{"account_id"}
	accessJtiKey = contextKey{"access_jti"}
)

// WithIdentity returns a context with the authenticated account id and the
// access token's jti set. Handlers read these via GetAccountID and
// GetAccessJti.
func WithIdentity(ctx context.Context, accountID int64, accessJti string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	ctx = context.WithValue(ctx, accessJtiKey, accessJti)
	return ctx
}

// GetAccountID returns the account id from context and true if set; otherwise 0, false.
func GetAccountID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(accountIDKey).(int64)
	return v, ok
}

// GetAccessJti returns the access jti from context and true if set; otherwise "", false.
func GetAccessJti(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accessJtiKey).(string)
	return v, ok
}
