package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstream/civic-auth/internal/config"
)

func newTestGuard(t *testing.T, at time.Time) (*LockoutGuard, *mockRepository) {
	repo := newMockRepository()
	guard := NewLockoutGuard(&config.LockoutConfig{
		MaxAttempts:     3,
		LockoutDuration: 10 * time.Minute,
	}, repo)
	guard.now = func() time.Time { return at }
	return guard, repo
}

func createGuardAccount(t *testing.T, repo *mockRepository) *Account {
	account := &Account{Email: "guard@example.com", PasswordHash: "x", Role: RoleUser}
	require.NoError(t, repo.CreateAccount(account))
	return account
}

func TestLockoutGuard_CheckAllowed(t *testing.T) {
	now := time.Now()

	t.Run("no lock", func(t *testing.T) {
		guard, repo := newTestGuard(t, now)
		account := createGuardAccount(t, repo)

		decision, err := guard.CheckAllowed(account)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("live lock reports remaining wait", func(t *testing.T) {
		guard, repo := newTestGuard(t, now)
		account := createGuardAccount(t, repo)

		until := now.Add(5 * time.Minute)
		account.LockoutUntil = &until

		decision, err := guard.CheckAllowed(account)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, 5*time.Minute, decision.RetryAfter)
	})

	t.Run("expired lock is cleared here", func(t *testing.T) {
		guard, repo := newTestGuard(t, now)
		account := createGuardAccount(t, repo)

		for i := 0; i < 3; i++ {
			require.NoError(t, guard.OnFailure(account))
		}
		require.NotNil(t, account.LockoutUntil)

		guard.now = func() time.Time { return now.Add(11 * time.Minute) }

		decision, err := guard.CheckAllowed(account)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Nil(t, account.LockoutUntil)
		assert.Equal(t, 0, account.FailedLoginAttempts)

		stored, err := repo.GetByID(account.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LockoutUntil)
		assert.Equal(t, 0, stored.FailedLoginAttempts)
	})
}

func TestLockoutGuard_OnFailure(t *testing.T) {
	now := time.Now()
	guard, repo := newTestGuard(t, now)
	account := createGuardAccount(t, repo)

	require.NoError(t, guard.OnFailure(account))
	assert.Equal(t, 1, account.FailedLoginAttempts)
	assert.NotNil(t, account.LastFailedLoginAt)
	assert.Nil(t, account.LockoutUntil)

	require.NoError(t, guard.OnFailure(account))
	assert.Nil(t, account.LockoutUntil)

	// Third failure crosses the threshold.
	require.NoError(t, guard.OnFailure(account))
	require.NotNil(t, account.LockoutUntil)
	assert.Equal(t, now.Add(10*time.Minute), *account.LockoutUntil)
}

func TestLockoutGuard_OnSuccess(t *testing.T) {
	now := time.Now()
	guard, repo := newTestGuard(t, now)
	account := createGuardAccount(t, repo)

	for i := 0; i < 3; i++ {
		require.NoError(t, guard.OnFailure(account))
	}
	require.NotNil(t, account.LockoutUntil)

	require.NoError(t, guard.OnSuccess(account))
	assert.Equal(t, 0, account.FailedLoginAttempts)
	assert.Nil(t, account.LockoutUntil)
	assert.Nil(t, account.LastFailedLoginAt)

	stored, err := repo.GetByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockoutUntil)
}

func TestLockoutGuard_ConcurrentFailures(t *testing.T) {
	now := time.Now()
	guard, repo := newTestGuard(t, now)
	account := createGuardAccount(t, repo)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			clone := *account
			done <- guard.OnFailure(&clone)
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	// No increment lost, and the lock applied exactly once.
	stored, err := repo.GetByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LockoutUntil)
	assert.Equal(t, now.Add(10*time.Minute), *stored.LockoutUntil)
}
