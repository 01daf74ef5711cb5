package repository

import (
	"context"
	"errors"

	"user_accounts/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user into the database. A taken phone number
// surfaces as ErrDuplicate.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (name, role, phone, address, password_hash, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRow(ctx, sql,
		user.Name, user.Role, user.Phone, user.Address, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return wrapError("failed to create user", err)
	}
	return nil
}

// FindByPhone retrieves a user by their phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	sql := `SELECT id, name, role, phone, address, password_hash, created_at, updated_at FROM users WHERE phone = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, phone))
	if err != nil {
		return nil, wrapError("failed to find user by phone", err)
	}
	return user, nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	sql := `SELECT id, name, role, phone, address, password_hash, created_at, updated_at FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, wrapError("failed to find user by ID", err)
	}
	return user, nil
}

// scanUser returns nil, nil when the row does not exist
func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Role, &user.Phone, &user.Address,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
