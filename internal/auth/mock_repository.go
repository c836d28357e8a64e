package auth

import (
	"sync"
	"time"
)

type mockRepository struct {
	mu       sync.Mutex
	accounts map[uint]*Account
	byEmail  map[string]uint
	nextID   uint
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts: make(map[uint]*Account),
		byEmail:  make(map[string]uint),
	}
}

func (r *mockRepository) CreateAccount(account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return ErrAccountExists
	}

	r.nextID++
	account.ID = r.nextID

	stored := *account
	r.accounts[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	return nil
}

func (r *mockRepository) GetByID(id uint) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked(id)
}

func (r *mockRepository) GetByEmail(email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return r.copyLocked(id)
}

func (r *mockRepository) UpdatePassword(id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	account.PasswordHash = hash
	return nil
}

func (r *mockRepository) RecordFailure(id uint, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return 0, ErrAccountNotFound
	}
	account.FailedLoginAttempts++
	failedAt := at
	account.LastFailedLoginAt = &failedAt
	return account.FailedLoginAttempts, nil
}

func (r *mockRepository) LockAccount(id uint, until time.Time, threshold int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	if account.FailedLoginAttempts >= threshold && account.LockoutUntil == nil {
		lockUntil := until
		account.LockoutUntil = &lockUntil
	}
	return nil
}

func (r *mockRepository) ClearExpiredLock(id uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	if account.LockoutUntil != nil && !now.Before(*account.LockoutUntil) {
		account.LockoutUntil = nil
		account.FailedLoginAttempts = 0
		account.LastFailedLoginAt = nil
	}
	return nil
}

func (r *mockRepository) ResetFailures(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	account.FailedLoginAttempts = 0
	account.LockoutUntil = nil
	account.LastFailedLoginAt = nil
	return nil
}

func (r *mockRepository) SetTokenPair(id uint, purpose Purpose, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}

	exp := expires
	if purpose == PurposeEmailVerify {
		account.EmailVerificationToken = &token
		account.EmailVerificationExpires = &exp
	} else {
		account.ResetPasswordToken = &token
		account.ResetPasswordExpires = &exp
	}
	return nil
}

func (r *mockRepository) RedeemToken(purpose Purpose, token string, now time.Time) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, account := range r.accounts {
		var stored *string
		var expires *time.Time
		if purpose == PurposeEmailVerify {
			stored, expires = account.EmailVerificationToken, account.EmailVerificationExpires
		} else {
			stored, expires = account.ResetPasswordToken, account.ResetPasswordExpires
		}

		if stored == nil || *stored != token {
			continue
		}
		if expires == nil || !now.Before(*expires) {
			return nil, ErrTokenNotFound
		}

		if purpose == PurposeEmailVerify {
			account.EmailVerificationToken = nil
			account.EmailVerificationExpires = nil
			account.EmailVerified = true
		} else {
			account.ResetPasswordToken = nil
			account.ResetPasswordExpires = nil
		}
		return r.copyLocked(id)
	}
	return nil, ErrTokenNotFound
}

func (r *mockRepository) copyLocked(id uint) (*Account, error) {
	account, exists := r.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}
