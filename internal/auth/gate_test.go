package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hramba/internal/db"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *time.Time) {
	t.Helper()
	database := db.NewTestDB(t)
	require.NoError(t, SetRolePassword(context.Background(), database, model.RoleCashier, "cashier-pass"))

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	g := NewGate(database, model.DefaultPermissions())
	g.now = func() time.Time { return now }
	return g, &now
}

func TestGateLogin(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.Login(ctx, "10.0.0.1", model.RoleCashier, "Ana", "cashier-pass"))
	require.NoError(t, g.Login(ctx, "10.0.0.1", model.RoleClient, "+70000000000", ""))

	assert.ErrorIs(t, g.Login(ctx, "10.0.0.1", "janitor", "Ana", "x"), ErrUnknownRole)
	assert.ErrorIs(t, g.Login(ctx, "10.0.0.1", model.RoleCashier, "  ", "cashier-pass"), ErrNameRequired)
}

func TestGateRoleWithoutPasswordRejects(t *testing.T) {
	g, _ := newTestGate(t)

	err := g.Login(context.Background(), "k", model.RoleAdmin, "Ana", "")
	var perr *InvalidPasswordError
	assert.ErrorAs(t, err, &perr)
}

func TestGateLockout(t *testing.T) {
	g, now := newTestGate(t)
	ctx := context.Background()

	err := g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	var perr *InvalidPasswordError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.AttemptsLeft)

	err = g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.AttemptsLeft)

	err = g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	var lerr *LockedOutError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 90*time.Second, lerr.Remaining)

	// The right password does not help while locked out.
	*now = now.Add(30 * time.Second)
	err = g.Login(ctx, "k", model.RoleCashier, "Ana", "cashier-pass")
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 60*time.Second, lerr.Remaining)

	// Other terminals are unaffected.
	require.NoError(t, g.Login(ctx, "other", model.RoleCashier, "Boris", "cashier-pass"))

	*now = now.Add(61 * time.Second)
	require.NoError(t, g.Login(ctx, "k", model.RoleCashier, "Ana", "cashier-pass"))
}

func TestGateSuccessResetsFailures(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	require.NoError(t, g.Login(ctx, "k", model.RoleCashier, "Ana", "cashier-pass"))

	err := g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	var perr *InvalidPasswordError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.AttemptsLeft)
}

func TestGateParallelGuessesHitLockout(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	var compared atomic.Int32
	bcryptCompare := g.compare
	g.compare = func(hash, password []byte) error {
		compared.Add(1)
		return bcryptCompare(hash, password)
	}

	const callers = 30
	var (
		wg      sync.WaitGroup
		invalid atomic.Int32
		locked  atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Login(ctx, "10.0.0.1", model.RoleCashier, "x", "wrong")
			var perr *InvalidPasswordError
			var lerr *LockedOutError
			switch {
			case errors.As(err, &perr):
				invalid.Add(1)
			case errors.As(err, &lerr):
				locked.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(DefaultMaxAttempts), compared.Load())
	assert.Equal(t, int32(DefaultMaxAttempts-1), invalid.Load())
	assert.Equal(t, int32(callers-DefaultMaxAttempts+1), locked.Load())

	var lerr *LockedOutError
	assert.ErrorAs(t, g.Login(ctx, "10.0.0.1", model.RoleCashier, "x", "cashier-pass"), &lerr)
}

func TestGateLateFailureKeepsLockoutEnd(t *testing.T) {
	g, now := newTestGate(t)
	ctx := context.Background()

	for range DefaultMaxAttempts {
		g.Login(ctx, "k", model.RoleCashier, "Ana", "wrong")
	}

	g.mu.Lock()
	a := g.attempts["k"]
	until := a.lockedUntil
	// A guess that was already being checked when the lockout started.
	a.inflight++
	g.mu.Unlock()
	require.False(t, until.IsZero())

	*now = now.Add(30 * time.Second)
	var lerr *LockedOutError
	require.ErrorAs(t, g.recordFailure("k"), &lerr)
	assert.Equal(t, 60*time.Second, lerr.Remaining)

	g.mu.Lock()
	assert.Equal(t, until, g.attempts["k"].lockedUntil)
	assert.Zero(t, g.attempts["k"].inflight)
	g.mu.Unlock()
}

func TestGateCapabilities(t *testing.T) {
	g, _ := newTestGate(t)

	assert.Equal(t, []model.Capability{model.CapAccept, model.CapReturn}, g.Capabilities(model.RoleCashier))
	assert.Empty(t, g.Capabilities(model.RoleClient))
}

func TestSetRolePassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	assert.ErrorIs(t, SetRolePassword(ctx, database, model.RoleClient, "longenough"), ErrNoPassword)
	assert.ErrorIs(t, SetRolePassword(ctx, database, "janitor", "longenough"), ErrUnknownRole)
	assert.ErrorIs(t, SetRolePassword(ctx, database, model.RoleAdmin, "short"), ErrPasswordTooShort)
	require.NoError(t, SetRolePassword(ctx, database, model.RoleAdmin, "longenough"))

	hash, err := store.GetRolePasswordHash(ctx, database, model.RoleAdmin)
	require.NoError(t, err)
	assert.NotEqual(t, "longenough", hash)
}

func TestEnsureRolePasswords(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	generated, err := EnsureRolePasswords(ctx, database, map[string]string{
		model.RoleAdmin: "configured-admin",
	})
	require.NoError(t, err)
	assert.Len(t, generated, len(model.StaffRoles)-1)
	assert.NotContains(t, generated, model.RoleAdmin)
	assert.Equal(t, []string{
		model.RoleCashier, model.RoleHeadCashier, model.RoleCreator, model.RoleNikitovsky,
	}, SortedRoles(generated))

	g := NewGate(database, model.DefaultPermissions())
	require.NoError(t, g.Login(ctx, "k", model.RoleAdmin, "Ana", "configured-admin"))
	require.NoError(t, g.Login(ctx, "k", model.RoleCashier, "Ana", generated[model.RoleCashier]))

	// Second start keeps existing passwords.
	again, err := EnsureRolePasswords(ctx, database, map[string]string{
		model.RoleAdmin: "configured-admin",
	})
	require.NoError(t, err)
	assert.Empty(t, again)
	require.NoError(t, g.Login(ctx, "k", model.RoleCashier, "Ana", generated[model.RoleCashier]))
}

func TestGeneratePassword(t *testing.T) {
	p, err := GeneratePassword(16)
	require.NoError(t, err)
	assert.Len(t, p, 16)
}
