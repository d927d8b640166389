// Package sessionredis is a Redis backed membership.SessionStore.
package sessionredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-membership"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "membership:session:"

// getOrCreateScript stores ARGV[1] under the account key unless a
// credential exists, indexes it by key, and returns the stored credential.
var getOrCreateScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
	redis.call("SET", KEYS[2], ARGV[1])
end
return redis.call("GET", KEYS[1])
`)

type Store struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  membership.Logger
}

var _ membership.SessionStore = (*Store)(nil)

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithLogger(logger membership.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach redis")
	}

	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:  client,
		prefix:  DefaultPrefix,
		timeout: time.Second,
		logger:  membership.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) accountKey(id uuid.UUID) string {
	return s.prefix + "account:" + id.String()
}

func (s *Store) credentialKey(key string) string {
	return s.prefix + "key:" + key
}

func (s *Store) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*membership.SessionCredential, error) {
	if accountID == uuid.Nil {
		return nil, goerrors.New("session account id must not be empty", goerrors.CategoryBadInput)
	}

	key, err := membership.NewSessionKey()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session key")
	}

	payload, err := json.Marshal(&membership.SessionCredential{
		Key:       key,
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session credential")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := getOrCreateScript.Run(ctx, s.client,
		[]string{s.accountKey(accountID), s.credentialKey(key)},
		string(payload),
	).Text()
	if err != nil {
		s.logger.Error("redis session get or create failed", "account_id", accountID.String(), "error", err)
		return nil, membership.WrapStoreError(err, "failed to store session credential")
	}

	return decode(raw)
}

func (s *Store) GetByKey(ctx context.Context, key string) (*membership.SessionCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.credentialKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, membership.ErrSessionNotFound
		}
		return nil, membership.WrapStoreError(err, "failed to load session credential")
	}

	return decode(raw)
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(raw string) (*membership.SessionCredential, error) {
	out := &membership.SessionCredential{}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session credential")
	}
	return out, nil
}
