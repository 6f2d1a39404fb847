package mailer

import (
	"context"

	"github.com/accueilpro/accueilpro/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	logger.InfoContext(ctx, "[DEV MAIL] welcome email",
		"to", toEmail,
		"name", toName,
		"subject", welcomeSubject,
	)
	return nil
}
