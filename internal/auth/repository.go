package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrTokenNotFound   = errors.New("token not found or expired")
)

// Repository is the persistence surface for account security state.
// Counter and token mutations are single conditional statements so that
// concurrent requests on the same account cannot lose updates.
type Repository interface {
	CreateAccount(account *Account) error
	GetByID(id uint) (*Account, error)
	GetByEmail(email string) (*Account, error)
	UpdatePassword(id uint, hash string) error

	// RecordFailure atomically increments the failure counter and stamps
	// the failure time, returning the post-increment count.
	RecordFailure(id uint, at time.Time) (int, error)

	// LockAccount sets the lockout deadline only if the counter has reached
	// threshold and no lock is present, so racing failures apply it once.
	LockAccount(id uint, until time.Time, threshold int) error

	// ClearExpiredLock resets lock state only if the lock deadline has passed.
	ClearExpiredLock(id uint, now time.Time) error

	ResetFailures(id uint) error

	// SetTokenPair sets a token and its expiry in one statement; issuing a
	// new token of the same purpose replaces the previous pair.
	SetTokenPair(id uint, purpose Purpose, token string, expires time.Time) error

	// RedeemToken finds the account holding an unexpired token and clears
	// the pair in the same transaction. Exactly one concurrent caller wins;
	// the rest get ErrTokenNotFound.
	RedeemToken(purpose Purpose, token string, now time.Time) (*Account, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateAccount(account *Account) error {
	if err := r.db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (r *repository) GetByID(id uint) (*Account, error) {
	var account Account
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetByEmail(email string) (*Account, error) {
	var account Account
	if err := r.db.Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) UpdatePassword(id uint, hash string) error {
	res := r.db.Model(&Account{}).Where("id = ?", id).
		UpdateColumn("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) RecordFailure(id uint, at time.Time) (int, error) {
	account := Account{ID: id}
	res := r.db.Model(&account).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "failed_login_attempts"}}}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"last_failed_login_at":  at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrAccountNotFound
	}
	return account.FailedLoginAttempts, nil
}

func (r *repository) LockAccount(id uint, until time.Time, threshold int) error {
	return r.db.Model(&Account{}).
		Where("id = ? AND failed_login_attempts >= ? AND lockout_until IS NULL", id, threshold).
		UpdateColumn("lockout_until", until).Error
}

func (r *repository) ClearExpiredLock(id uint, now time.Time) error {
	return r.db.Model(&Account{}).
		Where("id = ? AND lockout_until IS NOT NULL AND lockout_until <= ?", id, now).
		UpdateColumns(map[string]interface{}{
			"lockout_until":         nil,
			"failed_login_attempts": 0,
			"last_failed_login_at":  nil,
		}).Error
}

func (r *repository) ResetFailures(id uint) error {
	return r.db.Model(&Account{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"failed_login_attempts": 0,
			"lockout_until":         nil,
			"last_failed_login_at":  nil,
		}).Error
}

func (r *repository) SetTokenPair(id uint, purpose Purpose, token string, expires time.Time) error {
	tokenCol, expiresCol, err := tokenColumns(purpose)
	if err != nil {
		return err
	}

	res := r.db.Model(&Account{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			tokenCol:   token,
			expiresCol: expires,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) RedeemToken(purpose Purpose, token string, now time.Time) (*Account, error) {
	tokenCol, expiresCol, err := tokenColumns(purpose)
	if err != nil {
		return nil, err
	}

	var account Account
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(fmt.Sprintf("%s = ? AND %s > ?", tokenCol, expiresCol), token, now).
			First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			tokenCol:   nil,
			expiresCol: nil,
		}
		if purpose == PurposeEmailVerify {
			updates["email_verified"] = true
		}
		return tx.Model(&account).UpdateColumns(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if purpose == PurposeEmailVerify {
		account.EmailVerificationToken = nil
		account.EmailVerificationExpires = nil
		account.EmailVerified = true
	} else {
		account.ResetPasswordToken = nil
		account.ResetPasswordExpires = nil
	}
	return &account, nil
}

func tokenColumns(purpose Purpose) (token, expires string, err error) {
	switch purpose {
	case PurposeEmailVerify:
		return "email_verification_token", "email_verification_expires", nil
	case PurposePasswordReset:
		return "reset_password_token", "reset_password_expires", nil
	default:
		return "", "", fmt.Errorf("unknown token purpose %q", purpose)
	}
}
