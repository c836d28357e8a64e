package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier owns password hash computation and comparison.
// Hashing is the only place the plaintext is touched; it is never logged
// or stored.
type CredentialVerifier struct {
	cost int
}

func NewCredentialVerifier(cost int) *CredentialVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialVerifier{cost: cost}
}

func (v *CredentialVerifier) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	return string(bytes), err
}

// Verify reports whether password matches hash. A mismatch is a normal
// false; only hashing-level failures would surface, and bcrypt folds
// those into the same mismatch error.
func (v *CredentialVerifier) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
