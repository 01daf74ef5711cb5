package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user_accounts/internal/logging"
	"user_accounts/internal/model"
	"user_accounts/internal/repository"
	"user_accounts/internal/utils"

	"github.com/rs/zerolog"
)

// TokenService issues, resolves and revokes personal access tokens
type TokenService interface {
	Issue(ctx context.Context, user *model.User, label string, scopes []string) (*model.NewAccessToken, error)
	RevokeAll(ctx context.Context, userID int64) error
	Revoke(ctx context.Context, tokenID int64) error
	Authenticate(ctx context.Context, plainText string) (*model.Caller, error)
	List(ctx context.Context, userID int64) ([]model.AccessToken, error)
}

type tokenService struct {
	tokens  repository.TokenRepository
	users   repository.UserRepository
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTokenService creates a new TokenService. Every store call is bounded by timeout.
func NewTokenService(tokens repository.TokenRepository, users repository.UserRepository, timeout time.Duration, logger zerolog.Logger) TokenService {
	return &tokenService{
		tokens:  tokens,
		users:   users,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Issue creates a token for user and returns its plain text once
func (s *tokenService) Issue(ctx context.Context, user *model.User, label string, scopes []string) (*model.NewAccessToken, error) {
	secret, err := utils.GenerateTokenSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &model.AccessToken{
		UserID:    user.ID,
		Name:      label,
		TokenHash: utils.HashTokenSecret(secret),
		Scopes:    scopes,
		CreatedAt: s.now(),
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.tokens.Create(sctx, token); err != nil {
		return nil, storeError("failed to store token", err)
	}

	return &model.NewAccessToken{
		AccessToken: *token,
		PlainText:   utils.FormatPlainTextToken(token.ID, secret),
	}, nil
}

// RevokeAll deletes every token belonging to the user
func (s *tokenService) RevokeAll(ctx context.Context, userID int64) error {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.tokens.DeleteByUser(sctx, userID)
	if err != nil {
		return storeError("failed to revoke user tokens", err)
	}
	logging.FromContext(ctx, &s.logger).Debug().Int64("user_id", userID).Int64("revoked", n).Msg("tokens revoked")
	return nil
}

// Revoke deletes a single token. A token that is already gone is not an error.
func (s *tokenService) Revoke(ctx context.Context, tokenID int64) error {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.tokens.Delete(sctx, tokenID)
	if err != nil {
		return storeError("failed to revoke token", err)
	}
	if !deleted {
		logging.FromContext(ctx, &s.logger).Debug().Int64("token_id", tokenID).Msg("token already revoked")
	}
	return nil
}

// Authenticate resolves a plain text token ("<id>|<secret>" or a bare secret)
// to its owner. Unknown, tampered and malformed tokens all yield ErrUnauthorized.
func (s *tokenService) Authenticate(ctx context.Context, plainText string) (*model.Caller, error) {
	id, secret, err := utils.ParsePlainTextToken(plainText)
	if err != nil {
		return nil, ErrUnauthorized
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var token *model.AccessToken
	if id > 0 {
		token, err = s.tokens.FindByID(sctx, id)
	} else {
		token, err = s.tokens.FindByHash(sctx, utils.HashTokenSecret(secret))
	}
	if err != nil {
		return nil, storeError("failed to look up token", err)
	}
	if token == nil || !utils.TokenHashMatches(secret, token.TokenHash) {
		return nil, ErrUnauthorized
	}

	user, err := s.users.FindByID(sctx, token.UserID)
	if err != nil {
		return nil, storeError("failed to load token owner", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	if err := s.tokens.TouchLastUsed(sctx, token.ID, s.now()); err != nil {
		logging.FromContext(ctx, &s.logger).Warn().Err(err).Int64("token_id", token.ID).Msg("failed to record token use")
	}

	return &model.Caller{
		User:    user,
		TokenID: token.ID,
		Scopes:  token.Scopes,
	}, nil
}

// List returns the user's tokens, newest first
func (s *tokenService) List(ctx context.Context, userID int64) ([]model.AccessToken, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tokens, err := s.tokens.ListByUser(sctx, userID)
	if err != nil {
		return nil, storeError("failed to list tokens", err)
	}
	return tokens, nil
}

func storeError(msg string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
