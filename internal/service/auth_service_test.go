package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"
	"user_accounts/internal/repository"
	"user_accounts/internal/repository/repofake"
	"user_accounts/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Token, "Bearer "))
	assert.Equal(t, "0811111111", result.User.Phone)
	assert.Equal(t, "Alice", result.User.Name)
	assert.NotEqual(t, "Secr3t!23", result.User.PasswordHash)
	assert.Equal(t, 1, env.notifier.calls())

	caller, err := env.authenticateBearer(t, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, caller.User.ID)
	assert.True(t, caller.Can(model.ScopeUsers))

	tokens := env.tokens.All()
	require.Len(t, tokens, 1)
	assert.Equal(t, "Alice", tokens[0].Name)
	assert.NotContains(t, result.Token, tokens[0].TokenHash)
}

func TestAuthService_Register_DuplicatePhone(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	again := aliceInput()
	again.Name = "Mallory"
	result, err := env.auth.Register(context.Background(), again)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "no_hp")
	assert.Equal(t, 1, env.users.Count())
	assert.Len(t, env.tokens.All(), 1)
}

func TestAuthService_Register_ConcurrentSamePhone(t *testing.T) {
	env := newTestEnv(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.auth.Register(context.Background(), aliceInput())
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, env.users.Count())
}

func TestAuthService_Register_StoreConflictMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(racingUserRepo{FakeUserRepo: env.users}, env.tokenSvc,
		utils.NewPasswordHasher(bcrypt.MinCost), nil, time.Second, logging.NewWithWriter(env.logs, "debug"))

	_, err := svc.Register(context.Background(), aliceInput())
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
}

// racingUserRepo misses the duplicate on lookup and hits it on insert
type racingUserRepo struct {
	*repofake.FakeUserRepo
}

func (racingUserRepo) FindByPhone(context.Context, string) (*model.User, error) {
	return nil, nil
}

func (racingUserRepo) Create(context.Context, *model.User) error {
	return repository.ErrDuplicate
}

func TestAuthService_Register_PasswordOverBcryptLimit(t *testing.T) {
	env := newTestEnv(t)
	in := aliceInput()
	in.Password = "Secr3t!" + strings.Repeat("a", 80)

	result, err := env.auth.Register(context.Background(), in)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
	assert.Zero(t, env.users.Count())
	assert.NotContains(t, env.logs.String(), "unexpected failure")
}

func TestAuthService_Register_NotificationFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("redis down")

	result, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, env.logs.String(), "failed to enqueue registered event")
}

func TestAuthService_Register_NilNotifier(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(env.users, env.tokenSvc, utils.NewPasswordHasher(bcrypt.MinCost), nil,
		time.Second, logging.NewWithWriter(env.logs, "debug"))

	_, err := svc.Register(context.Background(), aliceInput())
	assert.NoError(t, err)
}

func TestAuthService_Register_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.users.Err = errors.Join(repository.ErrUnavailable, errors.New("dial tcp: connection refused"))

	_, err := env.auth.Register(context.Background(), aliceInput())
	assert.Equal(t, ErrUnavailable, err)
	assert.Contains(t, env.logs.String(), "connection refused")
}

func TestAuthService_Register_UnexpectedErrorIsHidden(t *testing.T) {
	env := newTestEnv(t)
	env.users.Err = errors.New("syntax error at or near SELECT")

	_, err := env.auth.Register(context.Background(), aliceInput())
	assert.Equal(t, ErrInternal, err)
	assert.NotContains(t, err.Error(), "syntax")
	assert.Contains(t, env.logs.String(), "syntax error at or near SELECT")
}

func TestAuthService_Register_StoreTimeout(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(blockingUserRepo{}, env.tokenSvc, utils.NewPasswordHasher(bcrypt.MinCost), nil,
		20*time.Millisecond, logging.NewWithWriter(env.logs, "debug"))

	start := time.Now()
	_, err := svc.Register(context.Background(), aliceInput())
	assert.Equal(t, ErrUnavailable, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAuthService_Login_RevokesPreviousTokens(t *testing.T) {
	env := newTestEnv(t)
	registered, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	// a second pre-existing session on another device
	other, err := env.tokenSvc.Issue(context.Background(), registered.User, "tablet", []string{model.ScopeUsers})
	require.NoError(t, err)

	loggedIn, err := env.auth.Login(context.Background(), "0811111111", "Secr3t!23")
	require.NoError(t, err)
	assert.NotEqual(t, registered.Token, loggedIn.Token)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = env.authenticateBearer(t, registered.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.tokenSvc.Authenticate(context.Background(), other.PlainText)
	assert.ErrorIs(t, err, ErrUnauthorized)

	caller, err := env.authenticateBearer(t, loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, caller.User.ID)

	tokens := env.tokens.All()
	require.Len(t, tokens, 1)
	assert.Equal(t, "Alice", tokens[0].Name)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	registered, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	result, err := env.auth.Login(context.Background(), "0811111111", "wrongpass")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// nothing issued, nothing revoked
	assert.Len(t, env.tokens.All(), 1)
	_, err = env.authenticateBearer(t, registered.Token)
	assert.NoError(t, err)
}

func TestAuthService_Login_UnknownPhoneLooksLikeWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	_, unknownErr := env.auth.Login(context.Background(), "0899999999", "Secr3t!23")
	_, wrongErr := env.auth.Login(context.Background(), "0811111111", "wrongpass")

	require.Error(t, unknownErr)
	assert.Equal(t, wrongErr, unknownErr)
	assert.Equal(t, wrongErr.Error(), unknownErr.Error())
}

func TestAuthService_Profile(t *testing.T) {
	env := newTestEnv(t)
	registered, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	_, err = env.auth.Profile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	caller, err := env.authenticateBearer(t, registered.Token)
	require.NoError(t, err)
	user, err := env.auth.Profile(context.Background(), caller)
	require.NoError(t, err)
	assert.Equal(t, *registered.User, *user)
}

func TestAuthService_Logout_RevokesOnlyCurrentToken(t *testing.T) {
	env := newTestEnv(t)
	registered, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	other, err := env.tokenSvc.Issue(context.Background(), registered.User, "tablet", []string{model.ScopeUsers})
	require.NoError(t, err)

	caller, err := env.authenticateBearer(t, registered.Token)
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(context.Background(), caller))

	_, err = env.authenticateBearer(t, registered.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.tokenSvc.Authenticate(context.Background(), other.PlainText)
	assert.NoError(t, err)

	// logging out with a token that is already gone is a no-op
	assert.NoError(t, env.auth.Logout(context.Background(), caller))
}

func TestAuthService_Logout_RequiresCaller(t *testing.T) {
	env := newTestEnv(t)
	assert.ErrorIs(t, env.auth.Logout(context.Background(), nil), ErrUnauthorized)
	assert.ErrorIs(t, env.auth.Logout(context.Background(), &model.Caller{}), ErrUnauthorized)
}

func TestAuthService_Tokens(t *testing.T) {
	env := newTestEnv(t)
	registered, err := env.auth.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	_, err = env.tokenSvc.Issue(context.Background(), registered.User, "tablet", []string{model.ScopeUsers})
	require.NoError(t, err)

	caller, err := env.authenticateBearer(t, registered.Token)
	require.NoError(t, err)

	tokens, err := env.auth.Tokens(context.Background(), caller)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "tablet", tokens[0].Name)

	_, err = env.auth.Tokens(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	assert.Equal(t, "0811111111", registered.User.Phone)
	t1 := registered.Token

	loggedIn, err := env.auth.Login(ctx, "0811111111", "Secr3t!23")
	require.NoError(t, err)
	t2 := loggedIn.Token
	assert.NotEqual(t, t1, t2)

	_, err = env.authenticateBearer(t, t1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	caller, err := env.authenticateBearer(t, t2)
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(ctx, caller))

	_, err = env.authenticateBearer(t, t2)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.Login(ctx, "0811111111", "wrongpass")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, env.tokens.All())
}
