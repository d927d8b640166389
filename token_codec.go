package membership

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenCodec issues and parses signed, purpose scoped verification tokens.
// It holds no state besides the signing key and never performs I/O.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	clock      Clock
	logger     Logger
}

// TokenCodecOption configures a TokenCodec
type TokenCodecOption func(*TokenCodec)

// WithTokenIssuer sets the iss claim stamped on issued tokens
func WithTokenIssuer(issuer string) TokenCodecOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// WithTokenClock overrides the clock used for iat, exp and expiry checks
func WithTokenClock(clock Clock) TokenCodecOption {
	return func(c *TokenCodec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenCodecOption {
	return func(c *TokenCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewTokenCodec creates a codec bound to signingKey. The key is copied so
// later mutation of the caller's slice has no effect.
func NewTokenCodec(signingKey []byte, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(signingKey) == 0 {
		return nil, goerrors.New("token signing key must not be empty", goerrors.CategoryBadInput)
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	c := &TokenCodec{
		signingKey: key,
		clock:      time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Issue signs a token for subject valid for the given duration
func (c *TokenCodec) Issue(subject, purpose string, validity time.Duration) (string, error) {
	if subject == "" {
		return "", goerrors.New("token subject must not be empty", goerrors.CategoryBadInput)
	}

	if purpose == "" {
		return "", goerrors.New("token purpose must not be empty", goerrors.CategoryBadInput)
	}

	if validity <= 0 {
		return "", goerrors.New("token validity must be positive", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{
				"validity": validity.String(),
			})
	}

	now := c.clock.now()
	claims := &VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Purpose: purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign verification token")
	}

	return signed, nil
}

// Parse verifies the signature of tokenString, then its expiry, then that
// its purpose equals expected. Claims are only returned when all three hold.
func (c *TokenCodec) Parse(tokenString, expected string) (*VerificationClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &VerificationClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Warn("token codec rejected signing method", "alg", t.Header["alg"])
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.signingKey, nil
	})

	if err != nil {
		c.logger.Debug("token codec rejected token", "error", err)
		return nil, ErrInvalidSignature
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	// the signature holds, so expiry is judged here: valid while now <= exp
	if claims.ExpiresAt == nil || c.clock.now().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	if claims.Purpose != expected {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}
