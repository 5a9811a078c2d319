// Package email provides message formatting and SMTP sending for house-market.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/evcraddock/house-market/internal/listing"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// Message is an outgoing plain-text email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Sender identifies who is writing to a landlord.
type Sender struct {
	Name  string
	Email string
}

// InquirySubject returns the subject line for a message about rec.
func InquirySubject(rec *listing.Record) string {
	return fmt.Sprintf("Re: %s", rec.Name)
}

// FormatInquiry builds the body of a message from a prospective buyer or
// tenant to the owner of rec.
func FormatInquiry(rec *listing.Record, from Sender, message, baseURL string) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s (%s) is asking about your listing:\n\n", from.Name, from.Email)
	fmt.Fprintf(&buf, "%s\n", rec.Name)

	details := []string{"$" + FormatWithCommas(rec.Price())}
	if rec.Type == listing.TypeRent {
		details[0] += " / month"
	}
	if rec.Offer && rec.DiscountedPrice != nil {
		details = append(details, fmt.Sprintf("discounted from $%s", FormatWithCommas(rec.RegularPrice)))
	}
	details = append(details, plural(rec.Bedrooms, "bed"), plural(rec.Bathrooms, "bath"))
	fmt.Fprintf(&buf, "   %s\n", strings.Join(details, " | "))
	if rec.Location != "" {
		fmt.Fprintf(&buf, "   %s\n", rec.Location)
	}
	if baseURL != "" {
		fmt.Fprintf(&buf, "   %s%s\n", strings.TrimSuffix(baseURL, "/"), listing.DetailPath(rec))
	}

	fmt.Fprintf(&buf, "\n%s\n", strings.TrimSpace(message))
	fmt.Fprintf(&buf, "\nReply to this email to answer %s directly.\n", from.Name)

	return buf.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Build renders msg with headers, ready for the SMTP DATA command.
func Build(from string, msg Message) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&sb, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	return []byte(sb.String())
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(cfg SMTPConfig, msg Message) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	data := Build(cfg.From, msg)
	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, msg.To, data)
	}
	return sendSTARTTLS(cfg, addr, msg.To, data)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg []byte) (err error) {
	tlsCfg := &tls.Config{ServerName: cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg []byte) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// FormatWithCommas formats n with thousands separators.
func FormatWithCommas(n int64) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
