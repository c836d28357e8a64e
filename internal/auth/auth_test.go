package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicstream/civic-auth/internal/config"
)

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret",
			TokenExpiration:      time.Hour,
			RememberMeExpiration: 30 * 24 * time.Hour,
			Issuer:               "civic-auth-test",
			Audience:             "civicstream-test",
			BcryptCost:           bcrypt.MinCost,
			MinPasswordLength:    8,
		},
		Lockout: config.LockoutConfig{
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
		},
		Verification: config.VerificationConfig{
			EmailTokenTTL: 24 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
	}
}

func newTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

type mockNotifier struct {
	mu                 sync.Mutex
	verificationTokens map[string]string
	resetTokens        map[string]string
	err                error
	delay              time.Duration
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (n *mockNotifier) SendVerificationEmail(email, token string) error {
	n.simulateTransport()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.verificationTokens[email] = token
	return nil
}

func (n *mockNotifier) SendPasswordResetEmail(email, token string) error {
	n.simulateTransport()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resetTokens[email] = token
	return nil
}

// setDelay makes every send block for d, standing in for a slow mail
// transport.
func (n *mockNotifier) setDelay(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delay = d
}

func (n *mockNotifier) simulateTransport() {
	n.mu.Lock()
	d := n.delay
	n.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (n *mockNotifier) lastVerificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verificationTokens[email]
}

func (n *mockNotifier) lastResetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resetTokens[email]
}

type testService struct {
	svc      *Service
	repo     *mockRepository
	notifier *mockNotifier
	cfg      *config.AppConfig
}

func newTestService(t *testing.T) *testService {
	cfg := newTestConfig()
	repo := newMockRepository()
	notifier := newMockNotifier()

	verifier := NewCredentialVerifier(cfg.Auth.BcryptCost)
	guard := NewLockoutGuard(&cfg.Lockout, repo)
	issuer := NewTokenIssuer(&cfg.Auth)
	tokens := NewVerificationTokenManager(&cfg.Verification, repo)

	svc := NewService(&cfg.Auth, newTestLogger(t), repo, verifier, guard, issuer, tokens, notifier)

	return &testService{
		svc:      svc,
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
	}
}

// setClock pins the clock used by the lockout guard and the token
// manager so time-dependent behavior is deterministic.
func (ts *testService) setClock(at time.Time) {
	ts.svc.guard.now = func() time.Time { return at }
	ts.svc.tokens.now = func() time.Time { return at }
}

// drainDeliveries blocks until background email delivery has finished.
func (ts *testService) drainDeliveries() {
	ts.svc.deliveries.Wait()
}

// requestResetToken runs a password reset request for email and returns
// the token that was mailed out once delivery completes.
func (ts *testService) requestResetToken(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, ts.svc.RequestPasswordReset(email))
	ts.drainDeliveries()
	token := ts.notifier.lastResetToken(email)
	require.NotEmpty(t, token)
	return token
}
