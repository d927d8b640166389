package membership_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-membership"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAccountContext(t *testing.T) {
	ctx := context.Background()

	_, ok := membership.FromContext(ctx)
	assert.False(t, ok)

	account := &membership.Account{ID: uuid.New(), Username: "alice"}
	got, ok := membership.FromContext(membership.WithContext(ctx, account))
	assert.True(t, ok)
	assert.Same(t, account, got)
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()

	_, ok := membership.SessionFromContext(ctx)
	assert.False(t, ok)

	session := &membership.SessionCredential{Key: "abc", AccountID: uuid.New()}
	got, ok := membership.SessionFromContext(membership.WithSessionContext(ctx, session))
	assert.True(t, ok)
	assert.Same(t, session, got)
}
