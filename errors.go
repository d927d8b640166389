package membership

import (
	"errors"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput       = "invalid_input"
	TextCodePasswordMismatch   = "password_mismatch"
	TextCodeWeakPassword       = "weak_password"
	TextCodeDuplicateIdentity  = "duplicate_identity"
	TextCodeInvalidSignature   = "invalid_signature"
	TextCodeTokenExpired       = "token_expired"
	TextCodeWrongPurpose       = "wrong_purpose"
	TextCodeUnknownSubject     = "unknown_subject"
	TextCodeAlreadyVerified    = "already_verified"
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeAccountNotVerified = "account_not_verified"
	TextCodeUnauthenticated    = "unauthenticated"
	TextCodeStoreUnavailable   = "store_unavailable"
	TextCodeInternal           = "internal_error"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can't be an empty string")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrAccountNotFound is returned by repositories when no account matches
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionNotFound is returned when a session key is unknown
var ErrSessionNotFound = goerrors.New("session credential not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidSignature covers malformed tokens and signature mismatches alike.
var ErrInvalidSignature = goerrors.New("verification token is invalid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned for validly signed tokens past their expiry
var ErrTokenExpired = goerrors.New("verification token has expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrWrongPurpose is returned when a token was minted for another purpose
var ErrWrongPurpose = goerrors.New("verification token purpose is not valid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeWrongPurpose).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknownSubject is returned when a token names an account that does not exist
var ErrUnknownSubject = goerrors.New("verification token subject does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUnknownSubject).
	WithCode(goerrors.CodeNotFound)

// ErrAlreadyVerified is returned when the account was verified before
var ErrAlreadyVerified = goerrors.New("account is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotVerified is returned when a correct login targets an unverified account
var ErrAccountNotVerified = goerrors.New("account is not active yet", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrUnauthenticated is returned by the session middleware
var ErrUnauthenticated = goerrors.New("authentication credentials were not provided", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// NewValidationError builds a per-field validation failure. fields maps the
// payload field name to a human readable message.
func NewValidationError(message, textCode string, fields map[string]string) *goerrors.Error {
	meta := make(map[string]any, 1)
	meta["fields"] = fields
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(textCode).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

// NewDuplicateIdentityError reports which identity fields are already taken
func NewDuplicateIdentityError(fields ...string) *goerrors.Error {
	sort.Strings(fields)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = "an account with this " + strings.ReplaceAll(f, "_", " ") + " already exists"
	}
	return NewValidationError("account identity already exists", TextCodeDuplicateIdentity, out)
}

// NewPasswordMismatchError is returned when the confirmation differs from the password
func NewPasswordMismatchError() *goerrors.Error {
	return NewValidationError("password and confirmation do not match", TextCodePasswordMismatch, map[string]string{
		"password_confirmation": "passwords don't match",
	})
}

// WrapStoreError marks an infrastructure failure. Callers never see the
// underlying driver error as a domain outcome.
func WrapStoreError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStoreUnavailable).
		WithCode(goerrors.CodeInternal)
}

// TextCodeOf returns the text code carried by err, if any
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries the given text code
func HasTextCode(err error, code string) bool {
	return err != nil && TextCodeOf(err) == code
}

// ValidationFields returns the per-field messages attached to a validation error
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}
