package membership

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerificationClaims are the claims carried by a verification token
type VerificationClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// IssuedAtTime returns the issue instant or the zero time
func (c *VerificationClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the expiry instant or the zero time
func (c *VerificationClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
