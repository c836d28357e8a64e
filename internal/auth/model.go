package auth

import (
	"time"

	"gorm.io/gorm"
)

// Role values carried into issued session tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:user"`

	EmailVerified            bool `gorm:"default:false"`
	EmailVerificationToken   *string
	EmailVerificationExpires *time.Time
	ResetPasswordToken       *string
	ResetPasswordExpires     *time.Time

	FailedLoginAttempts int `gorm:"not null;default:0"`
	LastFailedLoginAt   *time.Time
	LockoutUntil        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Account) TableName() string {
	return "accounts"
}

// Locked reports whether the account is under an unexpired lockout at t.
func (a *Account) Locked(t time.Time) bool {
	return a.LockoutUntil != nil && t.Before(*a.LockoutUntil)
}
