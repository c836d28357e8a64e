package auth

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicstream/civic-auth/internal/config"
)

var (
	// ErrInvalidCredentials covers both unknown account and wrong
	// password; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.New("password too short")
)

// AccountLockedError reports a login rejected by the lockout guard.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds up so a client that waits exactly this long
// never retries early.
func (e *AccountLockedError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// Notifier delivers account security emails. Delivery failure is never
// fatal to the flow that triggered it.
type Notifier interface {
	SendVerificationEmail(email, token string) error
	SendPasswordResetEmail(email, token string) error
}

// Fallback dummy hash in case deriving one at construction fails. Cost
// 12 then differs from the configured cost, but a comparison still
// happens.
const fallbackDummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type LoginResult struct {
	Account   *Account
	Token     string
	ExpiresAt time.Time
}

// Service composes the credential verifier, lockout guard, token issuer,
// and verification token manager into the account security use cases.
type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	verifier   *CredentialVerifier
	guard      *LockoutGuard
	issuer     *TokenIssuer
	tokens     *VerificationTokenManager
	notifier   Notifier

	// A real bcrypt hash, derived at the configured cost, that matches
	// no issued password. Verified against when the account does not
	// exist so both login paths cost one bcrypt comparison.
	dummyHash string

	// Tracks background reset-token delivery so it can be drained.
	deliveries sync.WaitGroup
}

func NewService(
	config *config.AuthConfig,
	log *zap.Logger,
	repo Repository,
	verifier *CredentialVerifier,
	guard *LockoutGuard,
	issuer *TokenIssuer,
	tokens *VerificationTokenManager,
	notifier Notifier,
) *Service {
	dummyHash, err := verifier.Hash("no-such-password")
	if err != nil {
		log.Error("failed to derive dummy hash", zap.Error(err))
		dummyHash = fallbackDummyHash
	}
	return &Service{
		config:     config,
		log:        log,
		repository: repo,
		verifier:   verifier,
		guard:      guard,
		issuer:     issuer,
		tokens:     tokens,
		notifier:   notifier,
		dummyHash:  dummyHash,
	}
}

// Login runs one login attempt: lockout gate first, credentials second.
// A locked account is rejected before any hashing work, so the response
// carries no timing signal about the password.
func (s *Service) Login(email, password string, rememberMe bool) (*LoginResult, error) {
	account, err := s.repository.GetByEmail(email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.verifier.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	decision, err := s.guard.CheckAllowed(account)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &AccountLockedError{RetryAfter: decision.RetryAfter}
	}

	if !s.verifier.Verify(password, account.PasswordHash) {
		if err := s.guard.OnFailure(account); err != nil {
			return nil, err
		}
		s.log.Info("failed login attempt",
			zap.Uint("account_id", account.ID),
			zap.Int("failed_attempts", account.FailedLoginAttempts))
		// The attempt that crosses the threshold reports the lock, not a
		// credential failure.
		if account.LockoutUntil != nil {
			return nil, &AccountLockedError{RetryAfter: account.LockoutUntil.Sub(s.guard.now())}
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.guard.OnSuccess(account); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(account, rememberMe)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Account:   account,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Register creates an account with an explicitly hashed password and
// issues a verification token. The token is delivered by email only,
// never returned to the caller; a failed send does not fail registration.
func (s *Service) Register(email, password string) (*Account, error) {
	if len(password) < s.config.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := s.verifier.Hash(password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.repository.CreateAccount(account); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(account, PurposeEmailVerify)
	if err != nil {
		s.log.Error("failed to issue verification token",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return account, nil
	}

	if err := s.notifier.SendVerificationEmail(account.Email, token); err != nil {
		s.log.Warn("verification email not sent",
			zap.Uint("account_id", account.ID), zap.Error(err))
	}

	return account, nil
}

// VerifyEmail redeems an email verification token.
func (s *Service) VerifyEmail(token string) (*Account, error) {
	return s.tokens.Redeem(token, PurposeEmailVerify)
}

// RequestPasswordReset issues and mails a reset token. It reports
// success whether or not the email maps to an account, and both paths
// do the same synchronous work: one lookup and one token generation.
// Storing the token and mailing it happen in the background, so the
// response time carries no signal about whether the account exists.
func (s *Service) RequestPasswordReset(email string) error {
	// Generated before the lookup result is consulted, and discarded on
	// the unknown-account path.
	token, tokenErr := s.tokens.Generate()

	account, err := s.repository.GetByEmail(email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if tokenErr != nil {
		s.log.Error("failed to generate reset token",
			zap.Uint("account_id", account.ID), zap.Error(tokenErr))
		return nil
	}

	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		s.deliverResetToken(account, token)
	}()
	return nil
}

func (s *Service) deliverResetToken(account *Account, token string) {
	if err := s.tokens.Store(account, PurposePasswordReset, token); err != nil {
		s.log.Error("failed to store reset token",
			zap.Uint("account_id", account.ID), zap.Error(err))
		return
	}
	if err := s.notifier.SendPasswordResetEmail(account.Email, token); err != nil {
		s.log.Warn("password reset email not sent",
			zap.Uint("account_id", account.ID), zap.Error(err))
	}
}

// ResetPassword redeems a reset token and installs the new password.
// Lockout state is cleared along with it: the old counters belong to the
// replaced credential.
func (s *Service) ResetPassword(token, newPassword string) error {
	if len(newPassword) < s.config.MinPasswordLength {
		return ErrPasswordTooShort
	}

	account, err := s.tokens.Redeem(token, PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := s.verifier.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.repository.UpdatePassword(account.ID, hash); err != nil {
		return err
	}
	return s.repository.ResetFailures(account.ID)
}

// Unlock is the administrative reset of an account's failure state.
func (s *Service) Unlock(accountID uint) error {
	if _, err := s.repository.GetByID(accountID); err != nil {
		return err
	}
	s.log.Info("account unlocked by admin", zap.Uint("account_id", accountID))
	return s.repository.ResetFailures(accountID)
}

// GetAccount fetches an account by id.
func (s *Service) GetAccount(id uint) (*Account, error) {
	return s.repository.GetByID(id)
}
