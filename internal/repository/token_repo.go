package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"user_accounts/internal/model"

	"github.com/jackc/pgx/v5"
)

// TokenRepository stores personal access tokens
type TokenRepository interface {
	Create(ctx context.Context, token *model.AccessToken) error
	FindByID(ctx context.Context, id int64) (*model.AccessToken, error)
	FindByHash(ctx context.Context, hash string) (*model.AccessToken, error)
	ListByUser(ctx context.Context, userID int64) ([]model.AccessToken, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}

type tokenRepository struct {
	db DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db DB) TokenRepository {
	return &tokenRepository{db: db}
}

const tokenColumns = `id, user_id, name, token, abilities, last_used_at, created_at`

// Create inserts the token row. Only the digest is written.
func (r *tokenRepository) Create(ctx context.Context, t *model.AccessToken) error {
	abilities, err := json.Marshal(t.Scopes)
	if err != nil {
		return fmt.Errorf("failed to encode token abilities: %w", err)
	}
	sql := `INSERT INTO personal_access_tokens (user_id, name, token, abilities, created_at)
            VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err = r.db.QueryRow(ctx, sql, t.UserID, t.Name, t.TokenHash, string(abilities), t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return wrapError("failed to create token", err)
	}
	return nil
}

// FindByID retrieves a token by its ID
func (r *tokenRepository) FindByID(ctx context.Context, id int64) (*model.AccessToken, error) {
	sql := `SELECT ` + tokenColumns + ` FROM personal_access_tokens WHERE id = $1`
	t, err := scanToken(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, wrapError("failed to find token by ID", err)
	}
	return t, nil
}

// FindByHash retrieves a token by the digest of its secret
func (r *tokenRepository) FindByHash(ctx context.Context, hash string) (*model.AccessToken, error) {
	sql := `SELECT ` + tokenColumns + ` FROM personal_access_tokens WHERE token = $1`
	t, err := scanToken(r.db.QueryRow(ctx, sql, hash))
	if err != nil {
		return nil, wrapError("failed to find token by hash", err)
	}
	return t, nil
}

// ListByUser returns a user's tokens, newest first
func (r *tokenRepository) ListByUser(ctx context.Context, userID int64) ([]model.AccessToken, error) {
	sql := `SELECT ` + tokenColumns + ` FROM personal_access_tokens
            WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, wrapError("failed to query tokens by user", err)
	}
	defer rows.Close()

	tokens := []model.AccessToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, wrapError("failed to scan token row", err)
		}
		tokens = append(tokens, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapError("error iterating token rows", err)
	}
	return tokens, nil
}

// DeleteByUser removes every token of the user and reports how many went
func (r *tokenRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM personal_access_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, wrapError("failed to delete user tokens", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one token. It reports false when nothing matched.
func (r *tokenRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM personal_access_tokens WHERE id = $1`, id)
	if err != nil {
		return false, wrapError("failed to delete token", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastUsed records when the token was last presented
func (r *tokenRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE personal_access_tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return wrapError("failed to update token last use", err)
	}
	return nil
}

// scanToken returns nil, nil when the row does not exist
func scanToken(row pgx.Row) (*model.AccessToken, error) {
	t := &model.AccessToken{}
	var abilities string
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &abilities, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(abilities), &t.Scopes); err != nil {
		return nil, fmt.Errorf("failed to decode token abilities: %w", err)
	}
	return t, nil
}
