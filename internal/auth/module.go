package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/civicstream/civic-auth/internal/config"
	"github.com/civicstream/civic-auth/internal/notify"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig) *CredentialVerifier {
					return NewCredentialVerifier(config.Auth.BcryptCost)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, repo Repository) *LockoutGuard {
					return NewLockoutGuard(&config.Lockout, repo)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig) *TokenIssuer {
					return NewTokenIssuer(&config.Auth)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, repo Repository) *VerificationTokenManager {
					return NewVerificationTokenManager(&config.Verification, repo)
				},
			),
			fx.Annotate(
				func(gateway *notify.Gateway) Notifier {
					return gateway
				},
			),
			fx.Annotate(
				func(
					config *config.AppConfig,
					log *zap.Logger,
					repo Repository,
					verifier *CredentialVerifier,
					guard *LockoutGuard,
					issuer *TokenIssuer,
					tokens *VerificationTokenManager,
					notifier Notifier,
				) *Service {
					return NewService(&config.Auth, log, repo, verifier, guard, issuer, tokens, notifier)
				},
			),
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log)
				},
			),
			fx.Annotate(
				func(issuer *TokenIssuer) *Middleware {
					return NewMiddleware(issuer)
				},
			),
		),
	)
}
