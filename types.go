package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds membership options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetVerificationTokenTTL() time.Duration
	GetVerificationURL() string
	GetPasswordHashCost() int
	GetMailFrom() string
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// SessionStore issues opaque session credentials. GetOrCreate must return the
// same credential for every caller racing on the same account.
type SessionStore interface {
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*SessionCredential, error)
	GetByKey(ctx context.Context, key string) (*SessionCredential, error)
}

// Dispatcher hands notifications to a delivery channel without blocking
// the caller on the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// Clock returns the current instant
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MEMBERSHIP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MEMBERSHIP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
