package membership

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyAccountMessage struct {
	Token string `json:"token" form:"token"`

	OnResponse func(*Account) `json:"-"`
}

func (e VerifyAccountMessage) Type() string { return "account.verify" }

type VerifyAccountHandler struct {
	repo     RepositoryManager
	codec    *TokenCodec
	activity ActivitySink
	logger   Logger
	clock    Clock
}

// NewVerifyAccountHandler creates a handler with sane defaults.
func NewVerifyAccountHandler(repo RepositoryManager, codec *TokenCodec) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:     repo,
		codec:    codec,
		activity: noopActivitySink{},
		logger:   defLogger{},
		clock:    time.Now,
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used to stamp verified_at.
func (h *VerifyAccountHandler) WithClock(clock Clock) *VerifyAccountHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
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

// Verify redeems token and returns the verified account
func (h *VerifyAccountHandler) Verify(ctx context.Context, token string) (*Account, error) {
	var out *Account
	err := h.Execute(ctx, VerifyAccountMessage{
		Token: token,
		OnResponse: func(a *Account) {
			out = a
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) (*Account, error) {
	claims, err := h.codec.Parse(strings.TrimSpace(event.Token), PurposeEmailConfirmation)
	if err != nil {
		h.recordFailure(ctx, "", err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().MarkVerified(ctx, claims.Subject, h.clock.now())
	if err != nil {
		h.recordFailure(ctx, claims.Subject, err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, WrapStoreError(err, "failed to verify account")
	}

	h.logger.Info("account verified", "account_id", account.ID.String(), "username", account.Username)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountVerified,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID:  account.ID.String(),
		OccurredAt: h.clock.now(),
	})

	return account, nil
}

func (h *VerifyAccountHandler) recordFailure(ctx context.Context, subject string, err error) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationFailed,
		Actor: ActorRef{
			ID:   subject,
			Type: "account",
		},
		OccurredAt: h.clock.now(),
		Metadata: map[string]any{
			"text_code": TextCodeOf(err),
		},
	})
}
