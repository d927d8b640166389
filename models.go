package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PurposeEmailConfirmation is the purpose stamped on verification tokens
const PurposeEmailConfirmation = "email-confirmation"

// DefaultVerificationTokenTTL is the validity window of a verification token
const DefaultVerificationTokenTTL = 72 * time.Hour

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk" json:"id"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Phone         string     `bun:"phone_number,notnull" json:"phone_number"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name"`
	LastName      string     `bun:"last_name,notnull" json:"last_name"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Verified      bool       `bun:"is_verified,notnull" json:"is_verified"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// PublicAccount is the view of an account that leaves the service
type PublicAccount struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone_number"`
}

// Public returns the serialisable view of the account
func (a *Account) Public() PublicAccount {
	if a == nil {
		return PublicAccount{}
	}
	return PublicAccount{
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}

// SessionCredential is the opaque bearer key handed out on login.
// There is at most one per account.
type SessionCredential struct {
	bun.BaseModel `bun:"table:session_credentials,alias:sc"`
	Key           string    `bun:"key,pk" json:"key"`
	AccountID     uuid.UUID `bun:"account_id,notnull,unique" json:"account_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
