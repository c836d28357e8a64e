package notify

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/civicstream/civic-auth/internal/config"
)

type Email struct {
	Subject string
	Body    string
	From    string
	To      []string
}

type Mailer interface {
	SendMail(ctx context.Context, e *Email) error
}

type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
}

func NewMailer(config *config.MailConfig) *Mailgun {
	return &Mailgun{
		domain:  config.Domain,
		apiKey:  config.APIKey,
		apiBase: config.APIBase,
	}
}

func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}

	message := mg.NewMessage(e.From, e.Subject, e.Body, e.To...)

	_, _, err := mg.Send(ctx, message)
	return err
}
