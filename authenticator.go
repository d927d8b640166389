package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

type LoginMessage struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginResult is returned on a successful login
type LoginResult struct {
	Account *Account
	Session *SessionCredential
}

// Authenticator admits verified accounts and hands out their session credential
type Authenticator struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger
	clock    Clock

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator creates an authenticator with sane defaults.
func NewAuthenticator(repo RepositoryManager) *Authenticator {
	return &Authenticator{
		repo:     repo,
		hasher:   NewBcryptHasher(passwordHashCost()),
		activity: noopActivitySink{},
		logger:   defLogger{},
		clock:    time.Now,
	}
}

// WithPasswordHasher overrides the password hasher.
func (a *Authenticator) WithPasswordHasher(hasher PasswordHasher) *Authenticator {
	if hasher != nil {
		a.hasher = hasher
	}
	return a
}

// WithActivitySink sets the sink used to emit login events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithLogger overrides the logger.
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithClock overrides the clock.
func (a *Authenticator) WithClock(clock Clock) *Authenticator {
	if clock != nil {
		a.clock = clock
	}
	return a
}

// Login checks email and password. Unknown emails and wrong passwords are
// indistinguishable to the caller. A correct password on an unverified
// account yields ErrAccountNotVerified.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email = normalizeEmail(email)

	account, err := a.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// same bcrypt work as a real comparison
			_ = a.hasher.ComparePasswordAndHash(password, a.getDummyHash())
			a.recordFailure(ctx, "", email, "unknown_account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := a.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			a.logger.Error("password comparison failed", "account_id", account.ID.String(), "error", err)
		}
		a.recordFailure(ctx, account.ID.String(), email, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !account.Verified {
		a.recordFailure(ctx, account.ID.String(), email, "not_verified")
		return nil, ErrAccountNotVerified
	}

	session, err := a.repo.Sessions().GetOrCreate(ctx, account.ID)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, WrapStoreError(err, "failed to issue session credential")
	}

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		OccurredAt: a.clock.now(),
	})

	return &LoginResult{
		Account: account,
		Session: session,
	}, nil
}

// Authenticate resolves a session key to its account
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*Account, *SessionCredential, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil, ErrUnauthenticated
	}

	session, err := a.repo.Sessions().GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	account, err := a.repo.Accounts().GetByID(ctx, session.AccountID.String())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	return account, session, nil
}

func (a *Authenticator) getDummyHash() string {
	a.dummyOnce.Do(func() {
		cost := bcrypt.DefaultCost
		if h, ok := a.hasher.(*BcryptHasher); ok {
			a.dummyHash = h.RandomPasswordHash()
			return
		}
		out, _ := bcrypt.GenerateFromPassword([]byte("membership-dummy-password"), cost)
		a.dummyHash = string(out)
	})
	return a.dummyHash
}

func (a *Authenticator) recordFailure(ctx context.Context, accountID, email, reason string) {
	a.logger.Debug("login rejected", "email", email, "reason", reason)

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor: ActorRef{
			ID:   email,
			Type: "anonymous",
		},
		AccountID:  accountID,
		OccurredAt: a.clock.now(),
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}
