package auth

import (
	"time"

	"github.com/civicstream/civic-auth/internal/config"
)

// Decision is the outcome of a lockout gate check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LockoutGuard tracks consecutive failed logins per account and decides
// whether a login attempt may proceed. Locks expire lazily: CheckAllowed
// is the only place that observes and clears an expired lock.
type LockoutGuard struct {
	config *config.LockoutConfig
	repo   Repository
	now    func() time.Time
}

func NewLockoutGuard(config *config.LockoutConfig, repo Repository) *LockoutGuard {
	return &LockoutGuard{
		config: config,
		repo:   repo,
		now:    time.Now,
	}
}

// CheckAllowed gates a login attempt. A live lock is reported with the
// remaining wait; an expired lock is cleared here before the attempt is
// evaluated, so no other component reasons about expiry.
func (g *LockoutGuard) CheckAllowed(account *Account) (Decision, error) {
	if account.LockoutUntil == nil {
		return Decision{Allowed: true}, nil
	}

	now := g.now()
	if now.Before(*account.LockoutUntil) {
		return Decision{Allowed: false, RetryAfter: account.LockoutUntil.Sub(now)}, nil
	}

	if err := g.repo.ClearExpiredLock(account.ID, now); err != nil {
		return Decision{}, err
	}
	account.LockoutUntil = nil
	account.FailedLoginAttempts = 0
	account.LastFailedLoginAt = nil

	return Decision{Allowed: true}, nil
}

// OnFailure records a failed attempt and locks the account once the
// post-increment count reaches the configured threshold. The lock update
// is conditional so two racing failures cannot both apply it.
func (g *LockoutGuard) OnFailure(account *Account) error {
	now := g.now()
	count, err := g.repo.RecordFailure(account.ID, now)
	if err != nil {
		return err
	}
	account.FailedLoginAttempts = count
	account.LastFailedLoginAt = &now

	if count >= g.config.MaxAttempts {
		until := now.Add(g.config.LockoutDuration)
		if err := g.repo.LockAccount(account.ID, until, g.config.MaxAttempts); err != nil {
			return err
		}
		account.LockoutUntil = &until
	}
	return nil
}

// OnSuccess resets all failure state after a successful login.
func (g *LockoutGuard) OnSuccess(account *Account) error {
	if err := g.repo.ResetFailures(account.ID); err != nil {
		return err
	}
	account.FailedLoginAttempts = 0
	account.LockoutUntil = nil
	account.LastFailedLoginAt = nil
	return nil
}
