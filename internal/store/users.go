package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

var ErrNotFound = errors.New("not found")

// UserRepository handles user lookups and writes.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT id, email, pw, role, created_at, last_login FROM users WHERE email = ?`)
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if !user.Role.Valid() {
		return fmt.Errorf("unknown role %q", user.Role)
	}
	user.CreatedAt = time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO users (email, pw, role, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, user.Email, user.PasswordHash, user.Role, user.CreatedAt); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uint) error {
	query := r.db.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
