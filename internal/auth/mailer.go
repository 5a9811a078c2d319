package auth

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/evcraddock/house-market/internal/email"
)

// Mailer sends account and contact emails.
type Mailer struct {
	config Config
}

// NewMailer creates a mailer with the given config.
func NewMailer(config Config) *Mailer {
	return &Mailer{config: config}
}

// SMTP returns the SMTP settings.
func (c Config) SMTP() email.SMTPConfig {
	return email.SMTPConfig{
		Host: c.SMTPHost,
		Port: c.SMTPPort,
		User: c.SMTPUser,
		Pass: c.SMTPPass,
		From: c.SMTPFrom,
	}
}

// Deliver sends msg, or logs it in dev mode.
func (m *Mailer) Deliver(msg email.Message) error {
	if m.config.DevMode {
		slog.Info("email (dev mode)", "to", msg.To, "reply_to", msg.ReplyTo, "subject", msg.Subject, "body", msg.Body)
		return nil
	}
	return email.Send(m.config.SMTP(), msg)
}

// SendPasswordReset emails a reset link, or logs it in dev mode.
// Returns the link.
func (m *Mailer) SendPasswordReset(to, token string) (string, error) {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.config.BaseURL, url.QueryEscape(token))

	body := fmt.Sprintf(
		"Someone asked to reset the password for your House Market account.\n\n%s\n\nThis link expires in one hour and can only be used once. If you did not ask for it, ignore this email.",
		link,
	)

	if err := m.Deliver(email.Message{
		To:      []string{to},
		Subject: "House Market: Reset your password",
		Body:    body,
	}); err != nil {
		return "", err
	}
	return link, nil
}
