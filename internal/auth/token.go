package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/civicstream/civic-auth/internal/config"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenInvalid     = errors.New("token invalid")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID returns the numeric account id carried in the subject claim.
func (c *Claims) AccountID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(id), nil
}

// TokenIssuer mints and validates the bearer session token. It is
// stateless; the only input beyond configuration is the account.
type TokenIssuer struct {
	config *config.AuthConfig
}

func NewTokenIssuer(config *config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{config: config}
}

// Issue signs a session token for the account. rememberMe selects the
// extended expiry.
func (t *TokenIssuer) Issue(account *Account, rememberMe bool) (token string, expiresAt time.Time, err error) {
	ttl := t.config.TokenExpiration
	if rememberMe {
		ttl = t.config.RememberMeExpiration
	}

	now := time.Now()
	expiresAt = now.Add(ttl)

	claims := &Claims{
		Role: account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(account.ID), 10),
			ID:        uuid.NewString(),
			Issuer:    t.config.Issuer,
			Audience:  jwt.ClaimStrings{t.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(t.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, audience, issuer, and expiry. A
// token signed with any method other than HS256 is rejected outright.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(t.config.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(t.config.Audience),
		jwt.WithIssuer(t.config.Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, ErrTokenInvalid
		}
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
