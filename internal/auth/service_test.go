package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestService_Login_Success(t *testing.T) {
	ts := newTestService(t)

	account, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	result, err := ts.svc.Login("user@example.com", "testpass123", false)
	require.NoError(t, err)
	assert.Equal(t, account.ID, result.Account.ID)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	claims, err := ts.svc.issuer.Verify(result.Token)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "user@example.com", password: "wrongpass"},
		{name: "unknown email", email: "nobody@example.com", password: "testpass123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.svc.Login(tt.email, tt.password, false)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestNewService_DummyHashMatchesConfiguredCost(t *testing.T) {
	ts := newTestService(t)

	// The unknown-account comparison must cost the same as a real one,
	// so the dummy hash is derived at the configured cost rather than
	// baked in at some other cost.
	cost, err := bcrypt.Cost([]byte(ts.svc.dummyHash))
	require.NoError(t, err)
	assert.Equal(t, ts.cfg.Auth.BcryptCost, cost)

	_, err = ts.svc.Login("nobody@example.com", "whatever", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Login_LockoutScenario(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "correct-horse")
	require.NoError(t, err)

	start := time.Now()
	ts.setClock(start)

	// Four wrong attempts: invalid credentials each time.
	for i := 0; i < 4; i++ {
		_, err := ts.svc.Login("user@example.com", "wrong", false)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The fifth crosses the threshold and reports the lock.
	_, err = ts.svc.Login("user@example.com", "wrong", false)
	var locked *AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.Positive(t, locked.RetryAfterSeconds())

	// Even the correct password is rejected while locked.
	_, err = ts.svc.Login("user@example.com", "correct-horse", false)
	require.ErrorAs(t, err, &locked)
	assert.Positive(t, locked.RetryAfterSeconds())

	// Once the lock has expired the same attempt succeeds and the
	// counter reads zero.
	ts.setClock(start.Add(ts.cfg.Lockout.LockoutDuration + time.Second))

	result, err := ts.svc.Login("user@example.com", "correct-horse", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	account, err := ts.repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, account.FailedLoginAttempts)
	assert.Nil(t, account.LockoutUntil)
	assert.Nil(t, account.LastFailedLoginAt)
}

func TestService_Login_SuccessResetsCounter(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := ts.svc.Login("user@example.com", "wrong", false)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = ts.svc.Login("user@example.com", "testpass123", false)
	require.NoError(t, err)

	account, err := ts.repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, account.FailedLoginAttempts)
}

func TestService_Login_RememberMe(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	short, err := ts.svc.Login("user@example.com", "testpass123", false)
	require.NoError(t, err)

	long, err := ts.svc.Login("user@example.com", "testpass123", true)
	require.NoError(t, err)

	assert.True(t, long.ExpiresAt.After(short.ExpiresAt))
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		setup    func(*testService)
		wantErr  error
	}{
		{
			name:     "successful registration",
			email:    "new@example.com",
			password: "testpass123",
		},
		{
			name:     "password too short",
			email:    "new@example.com",
			password: "short",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "duplicate email",
			email:    "taken@example.com",
			password: "testpass123",
			setup: func(ts *testService) {
				_, _ = ts.svc.Register("taken@example.com", "testpass123")
			},
			wantErr: ErrAccountExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestService(t)
			if tt.setup != nil {
				tt.setup(ts)
			}

			account, err := ts.svc.Register(tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, RoleUser, account.Role)
			assert.False(t, account.EmailVerified)
			assert.NotEqual(t, tt.password, account.PasswordHash)
			assert.True(t, ts.svc.verifier.Verify(tt.password, account.PasswordHash))

			// Verification token goes out by mail, never in the response.
			assert.NotEmpty(t, ts.notifier.lastVerificationToken(tt.email))
		})
	}
}

func TestService_Register_NotifierFailureIsNotFatal(t *testing.T) {
	ts := newTestService(t)
	ts.notifier.err = assert.AnError

	account, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)
	assert.NotZero(t, account.ID)

	// The token pair is still set even though the email never went out.
	stored, err := ts.repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.NotNil(t, stored.EmailVerificationToken)
	assert.NotNil(t, stored.EmailVerificationExpires)
}

func TestService_VerifyEmail(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)
	token := ts.notifier.lastVerificationToken("user@example.com")
	require.NotEmpty(t, token)

	account, err := ts.svc.VerifyEmail(token)
	require.NoError(t, err)
	assert.True(t, account.EmailVerified)
	assert.Nil(t, account.EmailVerificationToken)
	assert.Nil(t, account.EmailVerificationExpires)

	// Second redemption is indistinguishable from a bad token.
	_, err = ts.svc.VerifyEmail(token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = ts.svc.VerifyEmail("no-such-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	ts := newTestService(t)

	// Same nil result whether or not the account exists.
	err := ts.svc.RequestPasswordReset("nobody@example.com")
	require.NoError(t, err)
	ts.drainDeliveries()
	assert.Empty(t, ts.notifier.lastResetToken("nobody@example.com"))
}

func TestService_RequestPasswordReset_DoesNotWaitOnTransport(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	// With a slow mail transport, the request for a registered email
	// must return as fast as the request for an unknown one, or the
	// response time reveals which accounts exist.
	transportDelay := 200 * time.Millisecond
	ts.notifier.setDelay(transportDelay)

	for _, email := range []string{"user@example.com", "ghost@example.com"} {
		start := time.Now()
		require.NoError(t, ts.svc.RequestPasswordReset(email))
		assert.Less(t, time.Since(start), transportDelay/2,
			"reset request for %s blocked on the mail transport", email)
	}

	// Delivery still happens, just in the background.
	ts.drainDeliveries()
	assert.NotEmpty(t, ts.notifier.lastResetToken("user@example.com"))
	assert.Empty(t, ts.notifier.lastResetToken("ghost@example.com"))
}

func TestService_PasswordResetFlow(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "old-password1")
	require.NoError(t, err)

	token := ts.requestResetToken(t, "user@example.com")

	require.NoError(t, ts.svc.ResetPassword(token, "new-password1"))

	// Old password no longer works, new one does.
	_, err = ts.svc.Login("user@example.com", "old-password1", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = ts.svc.Login("user@example.com", "new-password1", false)
	require.NoError(t, err)

	// The token was single-use.
	err = ts.svc.ResetPassword(token, "another-password1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_ResetPassword_Validation(t *testing.T) {
	ts := newTestService(t)

	err := ts.svc.ResetPassword("irrelevant", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	err = ts.svc.ResetPassword("no-such-token", "long-enough-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_ResetPassword_ExpiredToken(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "old-password1")
	require.NoError(t, err)

	start := time.Now()
	ts.setClock(start)

	token := ts.requestResetToken(t, "user@example.com")

	ts.setClock(start.Add(ts.cfg.Verification.ResetTokenTTL + time.Minute))

	err = ts.svc.ResetPassword(token, "new-password1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestService_ResetPassword_ClearsLockout(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.svc.Register("user@example.com", "old-password1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = ts.svc.Login("user@example.com", "wrong", false)
	}
	locked, err := ts.repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	require.NotNil(t, locked.LockoutUntil)

	token := ts.requestResetToken(t, "user@example.com")
	require.NoError(t, ts.svc.ResetPassword(token, "new-password1"))

	account, err := ts.repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Nil(t, account.LockoutUntil)
	assert.Equal(t, 0, account.FailedLoginAttempts)
}

func TestService_Unlock(t *testing.T) {
	ts := newTestService(t)

	account, err := ts.svc.Register("user@example.com", "testpass123")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = ts.svc.Login("user@example.com", "wrong", false)
	}

	require.NoError(t, ts.svc.Unlock(account.ID))

	result, err := ts.svc.Login("user@example.com", "testpass123", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	assert.ErrorIs(t, ts.svc.Unlock(9999), ErrAccountNotFound)
}
