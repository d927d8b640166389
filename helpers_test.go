package membership_test

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/persistence"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureDispatcher struct {
	mu            sync.Mutex
	notifications []membership.Notification
}

func (d *captureDispatcher) Dispatch(_ context.Context, n membership.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
}

func (d *captureDispatcher) All() []membership.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]membership.Notification, len(d.notifications))
	copy(out, d.notifications)
	return out
}

type eventRecorder struct {
	mu     sync.Mutex
	events []membership.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event membership.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []membership.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]membership.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.Migrate(ctx, db, persistence.DriverSQLite, nil))

	return db
}

type testEnv struct {
	db         *bun.DB
	repo       membership.RepositoryManager
	clock      *fakeClock
	codec      *membership.TokenCodec
	hasher     *membership.BcryptHasher
	dispatcher *captureDispatcher
	events     *eventRecorder
	registrar  *membership.RegisterAccountHandler
	verifier   *membership.VerifyAccountHandler
	auther     *membership.Authenticator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	repo := membership.NewRepositoryManager(db)
	clock := newFakeClock()
	hasher := membership.NewBcryptHasher(bcrypt.MinCost)
	dispatcher := &captureDispatcher{}
	events := &eventRecorder{}

	codec, err := membership.NewTokenCodec([]byte(testSigningKey),
		membership.WithTokenClock(clock.Now),
		membership.WithTokenIssuer("membership-test"),
		membership.WithTokenLogger(membership.NopLogger{}),
	)
	require.NoError(t, err)

	return &testEnv{
		db:         db,
		repo:       repo,
		clock:      clock,
		codec:      codec,
		hasher:     hasher,
		dispatcher: dispatcher,
		events:     events,
		registrar: membership.NewRegisterAccountHandler(repo, codec, dispatcher).
			WithPasswordHasher(hasher).
			WithClock(clock.Now).
			WithActivitySink(events).
			WithLogger(membership.NopLogger{}),
		verifier: membership.NewVerifyAccountHandler(repo, codec).
			WithClock(clock.Now).
			WithActivitySink(events).
			WithLogger(membership.NopLogger{}),
		auther: membership.NewAuthenticator(repo).
			WithPasswordHasher(hasher).
			WithClock(clock.Now).
			WithActivitySink(events).
			WithLogger(membership.NopLogger{}),
	}
}

func validRegistration() membership.RegisterAccountMessage {
	return membership.RegisterAccountMessage{
		Email:                "a@x.io",
		Username:             "alice",
		Phone:                "+15550001234",
		Password:             "Tr0ub4dor&3",
		PasswordConfirmation: "Tr0ub4dor&3",
		FirstName:            "Alice",
		LastName:             "Liddell",
	}
}

// register creates an account and returns it with its verification token
func (e *testEnv) register(t *testing.T, msg membership.RegisterAccountMessage) (*membership.Account, string) {
	t.Helper()

	account, err := e.registrar.Register(context.Background(), msg)
	require.NoError(t, err)

	token, err := e.codec.Issue(account.Username, membership.PurposeEmailConfirmation, membership.DefaultVerificationTokenTTL)
	require.NoError(t, err)

	return account, token
}

func (e *testEnv) registerVerified(t *testing.T, msg membership.RegisterAccountMessage) *membership.Account {
	t.Helper()

	account, token := e.register(t, msg)
	_, err := e.verifier.Verify(context.Background(), token)
	require.NoError(t, err)

	return account
}

var tokenPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	token := tokenPattern.FindString(body)
	require.NotEmpty(t, token, "no token in body: %s", body)
	return token
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type testConfig struct {
	verificationURL string
	tokenTTL        time.Duration
}

func (c testConfig) GetSigningKey() string                  { return testSigningKey }
func (c testConfig) GetIssuer() string                      { return "membership-test" }
func (c testConfig) GetVerificationTokenTTL() time.Duration { return c.tokenTTL }
func (c testConfig) GetVerificationURL() string             { return c.verificationURL }
func (c testConfig) GetPasswordHashCost() int               { return bcrypt.MinCost }
func (c testConfig) GetMailFrom() string                    { return "no-reply@example.com" }
