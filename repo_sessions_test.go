package membership_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-membership"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("get or create is idempotent", func(t *testing.T) {
		repo := membership.NewRepositoryManager(newTestDB(t))

		account, err := repo.Accounts().Create(ctx, newAccount("alice", "a@x.io"))
		require.NoError(t, err)

		first, err := repo.Sessions().GetOrCreate(ctx, account.ID)
		require.NoError(t, err)
		assert.Len(t, first.Key, 2*membership.SessionKeyBytes)
		assert.Equal(t, account.ID, first.AccountID)

		second, err := repo.Sessions().GetOrCreate(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Key, second.Key)
	})

	t.Run("concurrent callers share one credential", func(t *testing.T) {
		repo := membership.NewRepositoryManager(newTestDB(t))

		account, err := repo.Accounts().Create(ctx, newAccount("alice", "a@x.io"))
		require.NoError(t, err)

		const callers = 8
		keys := make([]string, callers)
		errs := make([]error, callers)

		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cred, err := repo.Sessions().GetOrCreate(ctx, account.ID)
				errs[i] = err
				if cred != nil {
					keys[i] = cred.Key
				}
			}(i)
		}
		wg.Wait()

		for i := range errs {
			require.NoError(t, errs[i])
			assert.Equal(t, keys[0], keys[i])
		}
	})

	t.Run("accounts get distinct credentials", func(t *testing.T) {
		repo := membership.NewRepositoryManager(newTestDB(t))

		alice, err := repo.Accounts().Create(ctx, newAccount("alice", "a@x.io"))
		require.NoError(t, err)
		bob, err := repo.Accounts().Create(ctx, newAccount("bob01", "b@x.io"))
		require.NoError(t, err)

		a, err := repo.Sessions().GetOrCreate(ctx, alice.ID)
		require.NoError(t, err)
		b, err := repo.Sessions().GetOrCreate(ctx, bob.ID)
		require.NoError(t, err)

		assert.NotEqual(t, a.Key, b.Key)
	})

	t.Run("lookup by key", func(t *testing.T) {
		repo := membership.NewRepositoryManager(newTestDB(t))

		account, err := repo.Accounts().Create(ctx, newAccount("alice", "a@x.io"))
		require.NoError(t, err)

		cred, err := repo.Sessions().GetOrCreate(ctx, account.ID)
		require.NoError(t, err)

		found, err := repo.Sessions().GetByKey(ctx, cred.Key)
		require.NoError(t, err)
		assert.Equal(t, account.ID, found.AccountID)

		_, err = repo.Sessions().GetByKey(ctx, "missing")
		assert.ErrorIs(t, err, membership.ErrSessionNotFound)
	})

	t.Run("rejects nil account id", func(t *testing.T) {
		repo := membership.NewRepositoryManager(newTestDB(t))

		_, err := repo.Sessions().GetOrCreate(ctx, uuid.Nil)
		assert.Error(t, err)
	})
}

func TestNewSessionKey(t *testing.T) {
	a, err := membership.NewSessionKey()
	require.NoError(t, err)
	b, err := membership.NewSessionKey()
	require.NoError(t, err)

	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
}
