package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/hramba/internal/model"
)

const userColumns = `id, name, phone, email, role, is_active, created_by, created_at`

// CreateUser registers a new active user.
func CreateUser(ctx context.Context, db *sqlx.DB, name, phone, email, role, createdBy string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, phone, email, role, created_by) VALUES (?, ?, ?, ?, ?)`,
		name, phone, email, role, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, or nil if none exists.
func GetUser(ctx context.Context, db *sqlx.DB, id int64) (*model.User, error) {
	u := &model.User{}
	err := db.GetContext(ctx, u,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// ListUsers returns all active users, newest first.
func ListUsers(ctx context.Context, db *sqlx.DB) ([]model.User, error) {
	var users []model.User
	err := db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// DeactivateUser marks a user inactive. It reports whether an active user
// was found.
func DeactivateUser(ctx context.Context, db *sqlx.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET is_active = 0 WHERE id = ? AND is_active = 1`, id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivating user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivating user: %w", err)
	}
	return n > 0, nil
}

// SetRolePassword stores the bcrypt hash of a role's shared password.
func SetRolePassword(ctx context.Context, db *sqlx.DB, role, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO role_passwords (role, password_hash) VALUES (?, ?)
		 ON CONFLICT (role) DO UPDATE SET password_hash = excluded.password_hash,
		                                  updated_at = CURRENT_TIMESTAMP`,
		role, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("setting role password: %w", err)
	}
	return nil
}

// GetRolePasswordHash returns the stored hash for role, or "" if unset.
func GetRolePasswordHash(ctx context.Context, db *sqlx.DB, role string) (string, error) {
	var hash string
	err := db.GetContext(ctx, &hash,
		`SELECT password_hash FROM role_passwords WHERE role = ?`, role,
	)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting role password: %w", err)
	}
	return hash, nil
}
