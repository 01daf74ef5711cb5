package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"user_accounts/internal/model"
	"user_accounts/internal/repository"
	"user_accounts/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, env *testEnv, phone string) *model.User {
	t.Helper()
	user := &model.User{Name: "Bob", Role: "member", Phone: phone, Address: "Street 2", PasswordHash: "x"}
	require.NoError(t, env.users.Create(context.Background(), user))
	return user
}

func TestTokenService_IssueStoresOnlyDigest(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")

	issued, err := env.tokenSvc.Issue(context.Background(), user, "laptop", []string{model.ScopeUsers})
	require.NoError(t, err)

	id, secret, err := utils.ParsePlainTextToken(issued.PlainText)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, id)
	assert.True(t, strings.HasPrefix(issued.PlainText, strconv.FormatInt(issued.ID, 10)+"|"))

	stored := env.tokens.All()
	require.Len(t, stored, 1)
	assert.Equal(t, utils.HashTokenSecret(secret), stored[0].TokenHash)
	assert.NotContains(t, stored[0].TokenHash, secret)
	assert.Equal(t, "laptop", stored[0].Name)
	assert.Equal(t, []string{model.ScopeUsers}, stored[0].Scopes)
}

func TestTokenService_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")
	issued, err := env.tokenSvc.Issue(context.Background(), user, "laptop", []string{model.ScopeUsers})
	require.NoError(t, err)

	caller, err := env.tokenSvc.Authenticate(context.Background(), issued.PlainText)
	require.NoError(t, err)
	assert.Equal(t, user.ID, caller.User.ID)
	assert.Equal(t, issued.ID, caller.TokenID)
	assert.Equal(t, []string{model.ScopeUsers}, caller.Scopes)

	stored, err := env.tokens.FindByID(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestTokenService_Authenticate_BareSecret(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")
	issued, err := env.tokenSvc.Issue(context.Background(), user, "laptop", []string{model.ScopeUsers})
	require.NoError(t, err)

	_, secret, _ := strings.Cut(issued.PlainText, "|")
	caller, err := env.tokenSvc.Authenticate(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, caller.TokenID)
}

func TestTokenService_Authenticate_Rejects(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")
	issued, err := env.tokenSvc.Issue(context.Background(), user, "laptop", []string{model.ScopeUsers})
	require.NoError(t, err)

	id, secret, _ := utils.ParsePlainTextToken(issued.PlainText)
	tampered := utils.FormatPlainTextToken(id, strings.ToUpper(secret[:1])+strings.ToLower(secret[1:])+"x")
	wrongID := utils.FormatPlainTextToken(id+100, secret)

	for _, plain := range []string{"", "garbage|", "abc|def", tampered, wrongID, "unknownsecret"} {
		_, err := env.tokenSvc.Authenticate(context.Background(), plain)
		assert.ErrorIs(t, err, ErrUnauthorized, plain)
	}
}

func TestTokenService_Revoke(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")
	first, err := env.tokenSvc.Issue(context.Background(), user, "a", []string{model.ScopeUsers})
	require.NoError(t, err)
	second, err := env.tokenSvc.Issue(context.Background(), user, "b", []string{model.ScopeUsers})
	require.NoError(t, err)

	require.NoError(t, env.tokenSvc.Revoke(context.Background(), first.ID))
	require.NoError(t, env.tokenSvc.Revoke(context.Background(), first.ID))

	_, err = env.tokenSvc.Authenticate(context.Background(), first.PlainText)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.tokenSvc.Authenticate(context.Background(), second.PlainText)
	assert.NoError(t, err)
}

func TestTokenService_RevokeAll(t *testing.T) {
	env := newTestEnv(t)
	bob := createUser(t, env, "0822222222")
	carol := createUser(t, env, "0833333333")
	for i := 0; i < 3; i++ {
		_, err := env.tokenSvc.Issue(context.Background(), bob, "bob", []string{model.ScopeUsers})
		require.NoError(t, err)
	}
	carolToken, err := env.tokenSvc.Issue(context.Background(), carol, "carol", []string{model.ScopeUsers})
	require.NoError(t, err)

	require.NoError(t, env.tokenSvc.RevokeAll(context.Background(), bob.ID))

	bobTokens, err := env.tokenSvc.List(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobTokens)
	_, err = env.tokenSvc.Authenticate(context.Background(), carolToken.PlainText)
	assert.NoError(t, err)
}

func TestTokenService_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env, "0822222222")
	issued, err := env.tokenSvc.Issue(context.Background(), user, "a", []string{model.ScopeUsers})
	require.NoError(t, err)

	env.tokens.Err = errors.Join(repository.ErrUnavailable, context.DeadlineExceeded)

	_, err = env.tokenSvc.Authenticate(context.Background(), issued.PlainText)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, env.tokenSvc.Revoke(context.Background(), issued.ID), ErrUnavailable)
	assert.ErrorIs(t, env.tokenSvc.RevokeAll(context.Background(), user.ID), ErrUnavailable)
	_, err = env.tokenSvc.Issue(context.Background(), user, "b", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTokenService_OwnerDeleted(t *testing.T) {
	env := newTestEnv(t)
	ghost := &model.User{ID: 404, Name: "Ghost"}
	issued, err := env.tokenSvc.Issue(context.Background(), ghost, "ghost", []string{model.ScopeUsers})
	require.NoError(t, err)

	_, err = env.tokenSvc.Authenticate(context.Background(), issued.PlainText)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
