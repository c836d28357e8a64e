package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/civicstream/civic-auth/internal/api"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// Register wires the auth routes onto the echo instance. Which routes
// skip authentication is decided by the api.PublicEndpoints table, not
// per-route here.
func (h *Handler) Register(e *echo.Echo, mw *Middleware) {
	e.Use(mw.Authenticate)

	e.GET(api.HealthLiveness, func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST(api.AuthLogin, h.Login)
	e.POST(api.AuthRegister, h.RegisterAccount)
	e.POST(api.AuthVerifyEmail, h.VerifyEmail)
	e.POST(api.AuthForgotPassword, h.ForgotPassword)
	e.POST(api.AuthResetPassword, h.ResetPassword)

	e.GET(api.AuthMe, h.Me)
	e.POST(api.AdminUnlock, h.AdminUnlock, mw.RequireAdmin)
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type accountResponse struct {
	ID            uint   `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	result, err := h.service.Login(req.Email, req.Password, req.RememberMe)
	if err != nil {
		var locked *AccountLockedError
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		case errors.As(err, &locked):
			return c.JSON(http.StatusLocked, echo.Map{
				"error":               "account locked",
				"retry_after_seconds": locked.RetryAfterSeconds(),
			})
		default:
			h.log.Error("login failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
		}
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterAccount(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !isValidEmail(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email format")
	}

	account, err := h.service.Register(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort):
			return echo.NewHTTPError(http.StatusBadRequest, "password too short")
		case errors.Is(err, ErrAccountExists):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			h.log.Error("registration failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
		}
	}

	return c.JSON(http.StatusCreated, accountResponse{
		ID:            account.ID,
		Email:         account.Email,
		Role:          account.Role,
		EmailVerified: account.EmailVerified,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if _, err := h.service.VerifyEmail(req.Token); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		}
		h.log.Error("email verification failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.service.RequestPasswordReset(req.Email); err != nil {
		h.log.Error("password reset request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// Same response whether or not the email exists.
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "if that email is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.service.ResetPassword(req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort):
			return echo.NewHTTPError(http.StatusBadRequest, "password too short")
		case errors.Is(err, ErrTokenNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		default:
			h.log.Error("password reset failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *Handler) Me(c echo.Context) error {
	id, _ := c.Get(ContextAccountID).(uint)

	account, err := h.service.GetAccount(id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, accountResponse{
		ID:            account.ID,
		Email:         account.Email,
		Role:          account.Role,
		EmailVerified: account.EmailVerified,
	})
}

func (h *Handler) AdminUnlock(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}

	if err := h.service.Unlock(uint(id)); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		h.log.Error("unlock failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "account unlocked"})
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
