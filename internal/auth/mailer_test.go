package auth

import (
	"testing"

	"github.com/evcraddock/house-market/internal/email"
)

func TestSendPasswordResetDevMode(t *testing.T) {
	m := NewMailer(Config{DevMode: true, BaseURL: "http://localhost:8080"})

	link, err := m.SendPasswordReset("a@example.com", "abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if link != "http://localhost:8080/reset-password?token=abc123" {
		t.Errorf("link = %q", link)
	}
}

func TestSendPasswordResetNotConfigured(t *testing.T) {
	m := NewMailer(Config{BaseURL: "http://localhost:8080"})

	if _, err := m.SendPasswordReset("a@example.com", "abc123"); err == nil {
		t.Fatal("expected error without smtp settings")
	}
}

func TestConfigSMTP(t *testing.T) {
	cfg := Config{SMTPHost: "smtp.example.com", SMTPPort: "465", SMTPUser: "u", SMTPPass: "p", SMTPFrom: "f@example.com"}

	want := email.SMTPConfig{Host: "smtp.example.com", Port: "465", User: "u", Pass: "p", From: "f@example.com"}
	if got := cfg.SMTP(); got != want {
		t.Errorf("SMTP() = %+v, want %+v", got, want)
	}
}
