package membership

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionKeyBytes is the entropy of a session key, hex encoded to 40 chars
const SessionKeyBytes = 20

type sessions struct {
	db    *bun.DB
	clock Clock
}

var _ SessionStore = (*sessions)(nil)

// NewSessionsRepository creates a SQL backed SessionStore
func NewSessionsRepository(db *bun.DB) SessionStore {
	return &sessions{db: db}
}

// GetOrCreate inserts a credential unless the account already has one and
// then reads back whichever row won.
func (s *sessions) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*SessionCredential, error) {
	if accountID == uuid.Nil {
		return nil, goerrors.New("session account id must not be empty", goerrors.CategoryBadInput)
	}

	key, err := NewSessionKey()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session key")
	}

	cred := &SessionCredential{
		Key:       key,
		AccountID: accountID,
		CreatedAt: s.clock.now().UTC(),
	}

	_, err = s.db.NewInsert().
		Model(cred).
		On("CONFLICT (account_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, WrapStoreError(err, "failed to store session credential")
	}

	out := &SessionCredential{}
	err = s.db.NewSelect().
		Model(out).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, WrapStoreError(err, "failed to load session credential")
	}

	return out, nil
}

func (s *sessions) GetByKey(ctx context.Context, key string) (*SessionCredential, error) {
	out := &SessionCredential{}
	err := s.db.NewSelect().
		Model(out).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, WrapStoreError(err, "failed to load session credential")
	}
	return out, nil
}

// NewSessionKey returns a random 40 char hex key
func NewSessionKey() (string, error) {
	buf := make([]byte, SessionKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
