package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// MinPasswordLength is the shortest role password accepted.
const MinPasswordLength = 8

var (
	// ErrNoPassword is returned when setting a password on the client role.
	ErrNoPassword = errors.New("role has no password")
	// ErrPasswordTooShort is returned for passwords under MinPasswordLength.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// SetRolePassword hashes password and stores it as the shared password of role.
func SetRolePassword(ctx context.Context, db *sqlx.DB, role, password string) error {
	if !model.ValidRole(role) {
		return ErrUnknownRole
	}
	if !model.RequiresPassword(role) {
		return ErrNoPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return store.SetRolePassword(ctx, db, role, string(hash))
}

// EnsureRolePasswords makes sure every staff role has a password. Roles
// listed in configured get that password unless it is already the stored
// one. Roles with no stored password and no configured one get a generated
// password, which is returned keyed by role so it can be shown once.
func EnsureRolePasswords(ctx context.Context, db *sqlx.DB, configured map[string]string) (map[string]string, error) {
	generated := make(map[string]string)

	for _, role := range model.StaffRoles {
		hash, err := store.GetRolePasswordHash(ctx, db, role)
		if err != nil {
			return nil, err
		}

		if password, ok := configured[role]; ok {
			if hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
				continue
			}
			if err := SetRolePassword(ctx, db, role, password); err != nil {
				return nil, fmt.Errorf("setting %s password: %w", role, err)
			}
			continue
		}

		if hash != "" {
			continue
		}

		password, err := GeneratePassword(16)
		if err != nil {
			return nil, fmt.Errorf("generating password: %w", err)
		}
		if err := SetRolePassword(ctx, db, role, password); err != nil {
			return nil, fmt.Errorf("setting %s password: %w", role, err)
		}
		generated[role] = password
	}

	return generated, nil
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

// SortedRoles returns the keys of a role map in role order.
func SortedRoles(m map[string]string) []string {
	roles := make([]string, 0, len(m))
	for _, r := range model.Roles {
		if _, ok := m[r]; ok {
			roles = append(roles, r)
		}
	}
	return roles
}
