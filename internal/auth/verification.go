package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/civicstream/civic-auth/internal/config"
)

// Purpose tags a single-use token with the action it authorizes.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email-verify"
	PurposePasswordReset Purpose = "password-reset"
)

const tokenBytes = 32

// VerificationTokenManager issues and redeems single-use, expiring tokens
// for email verification and password reset. Issuing a new token of a
// purpose replaces any outstanding one; redemption clears the pair so a
// token is redeemable at most once.
type VerificationTokenManager struct {
	config *config.VerificationConfig
	repo   Repository
	now    func() time.Time
}

func NewVerificationTokenManager(config *config.VerificationConfig, repo Repository) *VerificationTokenManager {
	return &VerificationTokenManager{
		config: config,
		repo:   repo,
		now:    time.Now,
	}
}

func (m *VerificationTokenManager) Issue(account *Account, purpose Purpose) (string, error) {
	token, err := m.Generate()
	if err != nil {
		return "", err
	}
	if err := m.Store(account, purpose, token); err != nil {
		return "", err
	}
	return token, nil
}

// Generate produces token material without touching the account, so
// callers can do the generation work before deciding whether an account
// exists to store it on.
func (m *VerificationTokenManager) Generate() (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// Store persists a generated token as the account's current pair for
// the purpose.
func (m *VerificationTokenManager) Store(account *Account, purpose Purpose, token string) error {
	expires := m.now().Add(m.ttl(purpose))
	return m.repo.SetTokenPair(account.ID, purpose, token, expires)
}

// Redeem resolves a token to its account and clears it. Wrong, expired,
// and already-redeemed tokens all yield ErrTokenNotFound; the caller
// cannot tell them apart.
func (m *VerificationTokenManager) Redeem(token string, purpose Purpose) (*Account, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	return m.repo.RedeemToken(purpose, token, m.now())
}

func (m *VerificationTokenManager) ttl(purpose Purpose) time.Duration {
	if purpose == PurposePasswordReset {
		return m.config.ResetTokenTTL
	}
	return m.config.EmailTokenTTL
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
