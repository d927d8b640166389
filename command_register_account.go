package membership

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// NotificationKindAccountVerification tags verification emails
const NotificationKindAccountVerification = "account.verification"

type RegisterAccountMessage struct {
	Email                string `json:"email" form:"email"`
	Username             string `json:"username" form:"username"`
	Phone                string `json:"phone_number" form:"phone_number"`
	Password             string `json:"password" form:"password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation"`
	FirstName            string `json:"first_name" form:"first_name"`
	LastName             string `json:"last_name" form:"last_name"`
	UseHashid            bool   `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountHandler struct {
	repo            RepositoryManager
	codec           *TokenCodec
	dispatcher      Dispatcher
	hasher          PasswordHasher
	policy          *PasswordPolicy
	renderer        *EmailRenderer
	activity        ActivitySink
	logger          Logger
	clock           Clock
	tokenTTL        time.Duration
	verificationURL string
	mailFrom        string
	useHashid       bool
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, codec *TokenCodec, dispatcher Dispatcher) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:       repo,
		codec:      codec,
		dispatcher: dispatcher,
		hasher:     NewBcryptHasher(passwordHashCost()),
		policy:     DefaultPasswordPolicy(),
		activity:   noopActivitySink{},
		logger:     defLogger{},
		clock:      time.Now,
		tokenTTL:   DefaultVerificationTokenTTL,
	}
}

// WithConfig applies token validity, verification link and sender settings.
func (h *RegisterAccountHandler) WithConfig(cfg Config) *RegisterAccountHandler {
	if cfg == nil {
		return h
	}
	if ttl := cfg.GetVerificationTokenTTL(); ttl > 0 {
		h.tokenTTL = ttl
	}
	h.verificationURL = cfg.GetVerificationURL()
	h.mailFrom = cfg.GetMailFrom()
	h.hasher = NewBcryptHasher(cfg.GetPasswordHashCost())
	return h
}

// WithPasswordHasher overrides the password hasher.
func (h *RegisterAccountHandler) WithPasswordHasher(hasher PasswordHasher) *RegisterAccountHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithPasswordPolicy overrides the password strength policy.
func (h *RegisterAccountHandler) WithPasswordPolicy(policy *PasswordPolicy) *RegisterAccountHandler {
	if policy != nil {
		h.policy = policy
	}
	return h
}

// WithEmailRenderer sets the renderer for the verification email body.
func (h *RegisterAccountHandler) WithEmailRenderer(renderer *EmailRenderer) *RegisterAccountHandler {
	h.renderer = renderer
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock.
func (h *RegisterAccountHandler) WithClock(clock Clock) *RegisterAccountHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

// WithHashid derives account ids from the email address.
func (h *RegisterAccountHandler) WithHashid(enabled bool) *RegisterAccountHandler {
	h.useHashid = enabled
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		account, err := h.execute(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(account)
		}
		return nil
	}
}

// Register runs the registration and returns the created account
func (h *RegisterAccountHandler) Register(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	var out *Account
	event.OnResponse = func(a *Account) {
		out = a
	}

	if err := h.Execute(ctx, event); err != nil {
		return nil, err
	}

	return out, nil
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) (*Account, error) {
	event.Email = normalizeEmail(event.Email)
	event.Username = strings.TrimSpace(event.Username)

	if err := event.Validate(); err != nil {
		return nil, NewValidationError("invalid registration payload", TextCodeInvalidInput, FormatValidationErrorToMap(err))
	}

	if event.Password != event.PasswordConfirmation {
		return nil, NewPasswordMismatchError()
	}

	if err := h.policy.Validate(event.Password, event.Username, event.Email, emailLocalPart(event.Email)); err != nil {
		return nil, err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := h.clock.now().UTC()
	account := &Account{
		Username:     event.Username,
		Email:        event.Email,
		Phone:        event.Phone,
		FirstName:    strings.TrimSpace(event.FirstName),
		LastName:     strings.TrimSpace(event.LastName),
		PasswordHash: hash,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if event.UseHashid || h.useHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			account.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Accounts().TakenIdentitiesTx(ctx, tx, account.Username, account.Email)
		if err != nil {
			return err
		}

		if len(taken) > 0 {
			return NewDuplicateIdentityError(taken...)
		}

		account, err = h.repo.Accounts().CreateTx(ctx, tx, account)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, WrapStoreError(err, "account registration transaction failed")
	}

	h.logger.Info("account registered", "account_id", account.ID.String(), "username", account.Username)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		OccurredAt: now,
		Metadata: map[string]any{
			"username": account.Username,
		},
	})

	h.sendVerification(ctx, account)

	return account, nil
}

// sendVerification issues the token and hands the email to the dispatcher.
// Failures are logged; the account stays created.
func (h *RegisterAccountHandler) sendVerification(ctx context.Context, account *Account) {
	if h.dispatcher == nil {
		h.logger.Warn("no dispatcher configured, verification email not sent", "account_id", account.ID.String())
		return
	}

	token, err := h.codec.Issue(account.Username, PurposeEmailConfirmation, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue verification token", "account_id", account.ID.String(), "error", err)
		return
	}

	expiresAt := h.clock.now().Add(h.tokenTTL)
	link := VerificationLink(h.verificationURL, token)

	body, err := h.renderBody(account, token, link, expiresAt)
	if err != nil {
		h.logger.Error("failed to render verification email", "account_id", account.ID.String(), "error", err)
		return
	}

	h.dispatcher.Dispatch(ctx, Notification{
		Kind:    NotificationKindAccountVerification,
		From:    h.mailFrom,
		To:      account.Email,
		Subject: fmt.Sprintf("Welcome @%s! Verify your account to start using the platform", account.Username),
		Body:    body,
	})
}

func (h *RegisterAccountHandler) renderBody(account *Account, token, link string, expiresAt time.Time) (string, error) {
	if h.renderer == nil {
		return fmt.Sprintf("Verify your account: %s\nToken: %s\n", link, token), nil
	}

	return h.renderer.Render(EmailTemplateAccountVerification, map[string]any{
		"username":   account.Username,
		"product":    "membership",
		"token":      token,
		"link":       link,
		"expires_at": expiresAt.UTC().Format(time.RFC1123),
	})
}

// VerificationLink appends token to base as a query parameter
func VerificationLink(base, token string) string {
	if base == "" {
		return token
	}

	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return ""
}
