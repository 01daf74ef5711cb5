package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"
	"user_accounts/internal/repository"
	"user_accounts/internal/utils"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationNotifier hands a "registered" event to an asynchronous consumer.
// Its outcome never affects the registration response.
type RegistrationNotifier interface {
	UserRegistered(ctx context.Context, user *model.User) error
}

// RegisterInput holds already-validated registration fields
type RegisterInput struct {
	Name     string
	Role     string
	Phone    string
	Address  string
	Password string
}

// AuthResult is returned by Register and Login. Token carries the bearer scheme label.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"users"`
}

// AuthService provides authentication related services.
// Errors returned are always one of the package sentinels (or a *ValidationError).
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, phone, password string) (*AuthResult, error)
	Profile(ctx context.Context, caller *model.Caller) (*model.User, error)
	Logout(ctx context.Context, caller *model.Caller) error
	Tokens(ctx context.Context, caller *model.Caller) ([]model.AccessToken, error)
}

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenService
	hasher   *utils.PasswordHasher
	notifier RegistrationNotifier
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService. notifier may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens TokenService,
	hasher *utils.PasswordHasher,
	notifier RegistrationNotifier,
	timeout time.Duration,
	logger zerolog.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new user account and signs it in
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	result, err := s.register(ctx, in)
	if err != nil {
		return nil, s.publicError(ctx, "register", err)
	}
	return result, nil
}

func (s *authService) register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	existingUser, err := s.findByPhone(ctx, in.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, NewFieldError("no_hp", "The no hp has already been taken.")
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, NewFieldError("password", fmt.Sprintf("password must not be longer than %d bytes", utils.MaxPasswordBytes))
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		Name:         in.Name,
		Role:         in.Role,
		Phone:        in.Phone,
		Address:      in.Address,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.userRepo.Create(cctx, user)
	cancel()
	if err != nil {
		// Lost the race against a concurrent registration with the same phone
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}

	s.notifyRegistered(ctx, user)

	token, err := s.tokens.Issue(ctx, user, in.Name, []string{model.ScopeUsers})
	if err != nil {
		return nil, fmt.Errorf("user created, but failed to issue token: %w", err)
	}

	return &AuthResult{Token: utils.WithBearerScheme(token.PlainText), User: user}, nil
}

// Login verifies the credentials, revokes every previous token of the user
// and issues a fresh one.
func (s *authService) Login(ctx context.Context, phone, password string) (*AuthResult, error) {
	result, err := s.login(ctx, phone, password)
	if err != nil {
		return nil, s.publicError(ctx, "login", err)
	}
	return result, nil
}

func (s *authService) login(ctx context.Context, phone, password string) (*AuthResult, error) {
	user, err := s.findByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("error finding user by phone: %w", err)
	}
	if user == nil {
		// Spend the same bcrypt work as a real check
		s.hasher.Verify(password, s.dummyPasswordHash())
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(ctx, user, user.Name, []string{model.ScopeUsers})
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: utils.WithBearerScheme(token.PlainText), User: user}, nil
}

// Profile returns the caller's own record
func (s *authService) Profile(ctx context.Context, caller *model.Caller) (*model.User, error) {
	if caller == nil || caller.User == nil {
		return nil, ErrUnauthorized
	}
	return caller.User, nil
}

// Logout revokes only the token used for the current request
func (s *authService) Logout(ctx context.Context, caller *model.Caller) error {
	if caller == nil || caller.User == nil {
		return ErrUnauthorized
	}
	if err := s.tokens.Revoke(ctx, caller.TokenID); err != nil {
		return s.publicError(ctx, "logout", err)
	}
	return nil
}

// Tokens lists the caller's active tokens
func (s *authService) Tokens(ctx context.Context, caller *model.Caller) ([]model.AccessToken, error) {
	if caller == nil || caller.User == nil {
		return nil, ErrUnauthorized
	}
	tokens, err := s.tokens.List(ctx, caller.User.ID)
	if err != nil {
		return nil, s.publicError(ctx, "list tokens", err)
	}
	return tokens, nil
}

func (s *authService) findByPhone(ctx context.Context, phone string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.userRepo.FindByPhone(ctx, phone)
}

func (s *authService) notifyRegistered(ctx context.Context, user *model.User) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.notifier.UserRegistered(nctx, user); err != nil {
		logging.FromContext(ctx, &s.logger).Warn().Err(err).Int64("user_id", user.ID).Msg("failed to enqueue registered event")
	}
}

func (s *authService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

// publicError passes user-safe errors through and collapses everything else
// into ErrUnavailable or ErrInternal after logging the cause.
func (s *authService) publicError(ctx context.Context, op string, err error) error {
	logger := logging.FromContext(ctx, &s.logger)
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, ErrUnavailable), errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.Error().Err(err).Str("op", op).Msg("dependency unavailable")
		return ErrUnavailable
	}
	logger.Error().Err(err).Str("op", op).Msg("unexpected failure")
	return ErrInternal
}
