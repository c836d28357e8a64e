package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicstream/civic-auth/internal/breaker"
	"github.com/civicstream/civic-auth/internal/config"
)

// Gateway sends account security emails. Every send goes through the
// circuit breaker handed in at construction, with a bounded timeout; a
// timed-out send counts as a breaker failure.
type Gateway struct {
	mailer  Mailer
	breaker *breaker.Breaker
	config  *config.MailConfig
	log     *zap.Logger
}

func NewGateway(mailer Mailer, cb *breaker.Breaker, config *config.MailConfig, log *zap.Logger) *Gateway {
	return &Gateway{
		mailer:  mailer,
		breaker: cb,
		config:  config,
		log:     log,
	}
}

func (g *Gateway) SendVerificationEmail(email, token string) error {
	return g.send(email, "Verify your email address", fmt.Sprintf(
		"Welcome! Please confirm your email address by visiting:\n\n%s/verify-email?token=%s\n\nThe link expires in 24 hours.",
		g.config.BaseURL, token))
}

func (g *Gateway) SendPasswordResetEmail(email, token string) error {
	return g.send(email, "Reset your password", fmt.Sprintf(
		"A password reset was requested for your account. Visit:\n\n%s/reset-password?token=%s\n\nThe link expires in 1 hour. If you did not request this, ignore this email.",
		g.config.BaseURL, token))
}

func (g *Gateway) send(to, subject, body string) error {
	err := g.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), g.config.SendTimeout)
		defer cancel()

		return g.mailer.SendMail(ctx, &Email{
			Subject: subject,
			Body:    body,
			From:    g.config.Sender,
			To:      []string{to},
		})
	})
	if err != nil {
		g.log.Warn("notification send failed",
			zap.String("subject", subject),
			zap.String("breaker_state", g.breaker.State().String()),
			zap.Error(err))
	}
	return err
}
