package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/civicstream/civic-auth/internal/api"
)

// Context keys set by the middleware for downstream handlers.
const (
	ContextAccountID = "account_id"
	ContextRole      = "role"
)

type Middleware struct {
	issuer *TokenIssuer
}

func NewMiddleware(issuer *TokenIssuer) *Middleware {
	return &Middleware{issuer: issuer}
}

// Authenticate validates the bearer token on every non-public route and
// stores the account identity on the request context. Expired tokens get
// a distinct message so clients know to re-authenticate rather than
// retry.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if api.PublicEndpoints[c.Path()] {
			return next(c)
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		id, err := claims.AccountID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(ContextAccountID, id)
		c.Set(ContextRole, claims.Role)
		return next(c)
	}
}

// RequireAdmin restricts an already-authenticated route to admins.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, _ := c.Get(ContextRole).(string)
		if role != RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}
		return next(c)
	}
}
