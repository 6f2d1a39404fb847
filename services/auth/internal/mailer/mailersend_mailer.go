package mailer

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	return &MailerSendClient{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSendClient) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	name := greetingName(toName)
	body := fmt.Sprintf(`
		<h2>Bienvenue sur AccueilPro</h2>
		<p>Bonjour %s,</p>
		<p>Votre compte d'accueil a été créé. Vous pouvez dès maintenant enregistrer les arrivées et départs des visiteurs.</p>
	`, html.EscapeString(name))
	text := fmt.Sprintf("Bonjour %s,\n\nVotre compte d'accueil a été créé.", name)

	return m.send(ctx, toEmail, toName, welcomeSubject, text, body)
}

func (m *MailerSendClient) send(ctx context.Context, toEmail, toName, subject, text, htmlBody string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(htmlBody)

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
