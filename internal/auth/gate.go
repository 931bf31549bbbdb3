package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

// Lockout defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 90 * time.Second
)

var (
	// ErrUnknownRole is returned when logging in with a role that does not exist.
	ErrUnknownRole = errors.New("unknown role")
	// ErrNameRequired is returned when the actor gave no name or phone.
	ErrNameRequired = errors.New("name or phone is required")
)

// LockedOutError is returned while a terminal is locked out.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %d seconds", int(e.Remaining.Round(time.Second).Seconds()))
}

// InvalidPasswordError is returned for a wrong role password.
type InvalidPasswordError struct {
	AttemptsLeft int
}

func (e *InvalidPasswordError) Error() string {
	return fmt.Sprintf("invalid password, %d attempts left", e.AttemptsLeft)
}

type attempts struct {
	failures    int
	inflight    int
	lockedUntil time.Time
}

// Gate checks role passwords and locks out terminals after repeated
// failures. Terminals are identified by an opaque key, usually the remote
// address.
type Gate struct {
	DB              *sqlx.DB
	Perms           model.Permissions
	MaxAttempts     int
	LockoutDuration time.Duration

	now      func() time.Time
	compare  func(hash, password []byte) error
	mu       sync.Mutex
	attempts map[string]*attempts
}

// NewGate returns a Gate with the default lockout settings.
func NewGate(db *sqlx.DB, perms model.Permissions) *Gate {
	return &Gate{
		DB:              db,
		Perms:           perms,
		MaxAttempts:     DefaultMaxAttempts,
		LockoutDuration: DefaultLockoutDuration,
		now:             time.Now,
		compare:         bcrypt.CompareHashAndPassword,
		attempts:        make(map[string]*attempts),
	}
}

// Login checks the role password for an actor logging in from key. It
// returns nil when the actor may act with role.
func (g *Gate) Login(ctx context.Context, key, role, name, password string) error {
	if !model.ValidRole(role) {
		return ErrUnknownRole
	}
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}

	if !model.RequiresPassword(role) {
		return g.checkLockout(key)
	}

	// The attempt counts against the terminal until it is known to succeed,
	// so parallel guesses cannot outrun the lockout.
	if err := g.reserve(key); err != nil {
		return err
	}

	hash, err := store.GetRolePasswordHash(ctx, g.DB, role)
	if err != nil {
		g.release(key)
		return err
	}
	if hash == "" || g.compare([]byte(hash), []byte(password)) != nil {
		return g.recordFailure(key)
	}

	g.recordSuccess(key)
	return nil
}

// Capabilities returns what role may do.
func (g *Gate) Capabilities(role string) []model.Capability {
	return g.Perms.Of(role)
}

// lockedOut reports the lockout left on a, clearing an expired one.
// Callers hold g.mu.
func (g *Gate) lockedOut(a *attempts) error {
	if a.lockedUntil.IsZero() {
		return nil
	}
	if remaining := a.lockedUntil.Sub(g.now()); remaining > 0 {
		return &LockedOutError{Remaining: remaining}
	}
	// Lockout expired, start over.
	a.failures = 0
	a.lockedUntil = time.Time{}
	return nil
}

func (g *Gate) checkLockout(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		return nil
	}
	err := g.lockedOut(a)
	g.forget(key, a)
	return err
}

func (g *Gate) reserve(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		a = &attempts{}
		g.attempts[key] = a
	}
	if err := g.lockedOut(a); err != nil {
		return err
	}
	if a.failures+a.inflight >= g.MaxAttempts {
		return &LockedOutError{Remaining: g.LockoutDuration}
	}
	a.inflight++
	return nil
}

func (g *Gate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if a, ok := g.attempts[key]; ok {
		a.inflight--
		g.forget(key, a)
	}
}

func (g *Gate) recordSuccess(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		return
	}
	a.inflight--
	if a.lockedUntil.IsZero() {
		a.failures = 0
	}
	g.forget(key, a)
}

func (g *Gate) recordFailure(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		a = &attempts{}
		g.attempts[key] = a
	} else {
		a.inflight--
	}
	a.failures++

	if a.failures >= g.MaxAttempts {
		now := g.now()
		// A straggler must not extend a lockout that is already running.
		if a.lockedUntil.IsZero() || !a.lockedUntil.After(now) {
			a.lockedUntil = now.Add(g.LockoutDuration)
		}
		return &LockedOutError{Remaining: a.lockedUntil.Sub(now)}
	}
	return &InvalidPasswordError{AttemptsLeft: g.MaxAttempts - a.failures}
}

// forget drops the entry for key once it carries no state. Callers hold g.mu.
func (g *Gate) forget(key string, a *attempts) {
	if a.failures == 0 && a.inflight == 0 && a.lockedUntil.IsZero() {
		delete(g.attempts, key)
	}
}
