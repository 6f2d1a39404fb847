package mailer

import (
	"context"

	"github.com/accueilpro/accueilpro/pkg/config"
)

type Service interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
}

// New picks the dev mailer unless MailerSend is configured and dev mode is off.
func New(cfg config.EmailConfig) Service {
	if cfg.DevMode || cfg.MailerSendKey == "" {
		return NewDevMailer()
	}
	return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
}

const welcomeSubject = "Bienvenue sur AccueilPro"

func greetingName(name string) string {
	if name == "" {
		return "et bienvenue"
	}
	return name
}
