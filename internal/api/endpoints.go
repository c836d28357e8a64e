package api

// Authentication endpoints
const (
	AuthLogin          = "/auth/login"
	AuthRegister       = "/auth/register"
	AuthVerifyEmail    = "/auth/verify-email"
	AuthForgotPassword = "/auth/forgot-password"
	AuthResetPassword  = "/auth/reset-password"

	AuthMe         = "/auth/me"
	AdminUnlock    = "/auth/admin/accounts/:id/unlock"
	HealthLiveness = "/health"
)

// PublicEndpoints defines endpoints that don't require authentication
var PublicEndpoints = map[string]bool{
	AuthLogin:          true,
	AuthRegister:       true,
	AuthVerifyEmail:    true,
	AuthForgotPassword: true,
	AuthResetPassword:  true,
	HealthLiveness:     true,
}
