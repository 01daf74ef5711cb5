package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"
	"user_accounts/internal/repository"
	"user_accounts/internal/repository/repofake"
	"user_accounts/internal/utils"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu    sync.Mutex
	users []int64
	err   error
}

func (n *recordingNotifier) UserRegistered(_ context.Context, user *model.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, user.ID)
	return n.err
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.users)
}

type testEnv struct {
	users    *repofake.FakeUserRepo
	tokens   *repofake.FakeTokenRepo
	notifier *recordingNotifier
	tokenSvc TokenService
	auth     AuthService
	logs     *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := logging.NewWithWriter(logs, "debug")
	users := repofake.NewFakeUserRepo()
	tokens := repofake.NewFakeTokenRepo()
	notifier := &recordingNotifier{}
	tokenSvc := NewTokenService(tokens, users, time.Second, logger)
	auth := NewAuthService(users, tokenSvc, utils.NewPasswordHasher(bcrypt.MinCost), notifier, time.Second, logger)
	return &testEnv{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		tokenSvc: tokenSvc,
		auth:     auth,
		logs:     logs,
	}
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Name:     "Alice",
		Role:     "member",
		Phone:    "0811111111",
		Address:  "Street 1",
		Password: "Secr3t!23",
	}
}

// authenticateBearer strips the scheme label the way the middleware does
func (e *testEnv) authenticateBearer(t *testing.T, bearer string) (*model.Caller, error) {
	t.Helper()
	plain, err := utils.StripBearerScheme(bearer)
	require.NoError(t, err)
	return e.tokenSvc.Authenticate(context.Background(), plain)
}

// blockingUserRepo waits for the context deadline the way a hung database would
type blockingUserRepo struct {
	repository.UserRepository
}

func (blockingUserRepo) FindByPhone(ctx context.Context, _ string) (*model.User, error) {
	<-ctx.Done()
	return nil, errors.Join(repository.ErrUnavailable, ctx.Err())
}
