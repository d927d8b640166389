package membership

import (
	"context"
)

var accountCtxKey = &contextKey{"account"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// WithSessionContext sets the SessionCredential in the given context
func WithSessionContext(r context.Context, cred *SessionCredential) context.Context {
	return context.WithValue(r, sessionCtxKey, cred)
}

// SessionFromContext finds the session credential from the context.
func SessionFromContext(ctx context.Context) (*SessionCredential, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*SessionCredential)
	return raw, ok && raw != nil
}
