package notify

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/civicstream/civic-auth/internal/breaker"
	"github.com/civicstream/civic-auth/internal/config"
)

// NewModule returns the notification module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig) Mailer {
					return NewMailer(&config.Mail)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, mailer Mailer, log *zap.Logger) *Gateway {
					cb := breaker.New(&config.Breaker)
					return NewGateway(mailer, cb, &config.Mail, log)
				},
			),
		),
	)
}
