package membership_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, clock *fakeClock, key string) *membership.TokenCodec {
	t.Helper()
	codec, err := membership.NewTokenCodec([]byte(key),
		membership.WithTokenClock(clock.Now),
		membership.WithTokenLogger(membership.NopLogger{}),
	)
	require.NoError(t, err)
	return codec
}

// flipSignatureChar changes one character in the middle of the signature segment
func flipSignatureChar(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

func TestNewTokenCodec(t *testing.T) {
	t.Run("rejects empty key", func(t *testing.T) {
		codec, err := membership.NewTokenCodec(nil)
		assert.Error(t, err)
		assert.Nil(t, codec)
	})

	t.Run("copies the key", func(t *testing.T) {
		clock := newFakeClock()
		key := []byte(testSigningKey)
		codec, err := membership.NewTokenCodec(key, membership.WithTokenClock(clock.Now))
		require.NoError(t, err)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)

		key[0] = 'X'

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.NoError(t, err)
	})
}

func TestTokenCodecIssue(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock, testSigningKey)

	t.Run("stamps subject purpose and times", func(t *testing.T) {
		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)

		claims, err := codec.Parse(token, membership.PurposeEmailConfirmation)
		require.NoError(t, err)

		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, membership.PurposeEmailConfirmation, claims.Purpose)
		assert.True(t, claims.IssuedAtTime().Equal(clock.Now()))
		assert.True(t, claims.ExpiresAtTime().Equal(clock.Now().Add(72*time.Hour)))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := codec.Issue("", membership.PurposeEmailConfirmation, time.Hour)
		assert.Error(t, err)

		_, err = codec.Issue("alice", "", time.Hour)
		assert.Error(t, err)

		_, err = codec.Issue("alice", membership.PurposeEmailConfirmation, 0)
		assert.Error(t, err)
	})
}

func TestTokenCodecParse(t *testing.T) {
	t.Run("valid until the last second of the window", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
		require.NoError(t, err)

		clock.Advance(membership.DefaultVerificationTokenTTL - time.Second)

		claims, err := codec.Parse(token, membership.PurposeEmailConfirmation)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
	})

	t.Run("valid at the exact expiry instant", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
		require.NoError(t, err)

		clock.Advance(membership.DefaultVerificationTokenTTL)

		claims, err := codec.Parse(token, membership.PurposeEmailConfirmation)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
	})

	t.Run("expired one second after expiry", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
		require.NoError(t, err)

		clock.Advance(membership.DefaultVerificationTokenTTL + time.Second)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrTokenExpired)
	})

	t.Run("expired after four days", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
		require.NoError(t, err)

		clock.Advance(96 * time.Hour)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrTokenExpired)
		assert.Equal(t, membership.TextCodeTokenExpired, membership.TextCodeOf(err))
	})

	t.Run("tampered signature", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)

		_, err = codec.Parse(flipSignatureChar(token), membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		alice, err := codec.Issue("alice", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)
		bob, err := codec.Issue("bob", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)

		a := strings.Split(alice, ".")
		b := strings.Split(bob, ".")
		forged := strings.Join([]string{a[0], b[1], a[2]}, ".")

		_, err = codec.Parse(forged, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("signed with another key", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)
		other := newTestCodec(t, clock, "another-signing-key-0123456789abcdef")

		token, err := other.Issue("alice", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("signature is checked before expiry", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)
		other := newTestCodec(t, clock, "another-signing-key-0123456789abcdef")

		token, err := other.Issue("alice", membership.PurposeEmailConfirmation, time.Hour)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("wrong purpose", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", "password-reset", time.Hour)
		require.NoError(t, err)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrWrongPurpose)
	})

	t.Run("expiry is checked before purpose", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		token, err := codec.Issue("alice", "password-reset", time.Hour)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrTokenExpired)
	})

	t.Run("malformed tokens", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		for _, token := range []string{"", "not-a-token", "a.b.c", "a.b"} {
			_, err := codec.Parse(token, membership.PurposeEmailConfirmation)
			assert.ErrorIs(t, err, membership.ErrInvalidSignature, "token %q", token)
		}
	})

	t.Run("rejects unsigned tokens", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		claims := &membership.VerificationClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				IssuedAt:  jwt.NewNumericDate(clock.Now()),
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
			Purpose: membership.PurposeEmailConfirmation,
		}

		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("rejects other hmac algorithms", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		claims := &membership.VerificationClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
			Purpose: membership.PurposeEmailConfirmation,
		}

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSigningKey))
		require.NoError(t, err)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.ErrorIs(t, err, membership.ErrInvalidSignature)
	})

	t.Run("rejects tokens without expiry", func(t *testing.T) {
		clock := newFakeClock()
		codec := newTestCodec(t, clock, testSigningKey)

		claims := &membership.VerificationClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
			Purpose:          membership.PurposeEmailConfirmation,
		}

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
		require.NoError(t, err)

		_, err = codec.Parse(token, membership.PurposeEmailConfirmation)
		assert.True(t, errors.Is(err, membership.ErrTokenExpired))
	})
}
