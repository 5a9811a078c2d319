// Package auth provides accounts, sessions, API keys, password resets,
// identity provider sign-in, and passkeys.
package auth

import (
	"os"
	"strconv"
)

// Config holds authentication configuration.
type Config struct {
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
	DevMode  bool
	BaseURL  string // e.g. http://localhost:8080

	// Identity provider ID tokens. A secret selects HS256; a PEM public
	// key file selects RS256.
	ProviderIssuer        string
	ProviderAudience      string
	ProviderSecret        string
	ProviderPublicKeyFile string

	// APIKeyFailuresPerMinute caps bad API key attempts per client IP.
	APIKeyFailuresPerMinute int
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		SMTPHost:                os.Getenv("HM_SMTP_HOST"),
		SMTPPort:                envOrDefault("HM_SMTP_PORT", "587"),
		SMTPUser:                os.Getenv("HM_SMTP_USER"),
		SMTPPass:                os.Getenv("HM_SMTP_PASS"),
		SMTPFrom:                os.Getenv("HM_SMTP_FROM"),
		DevMode:                 os.Getenv("HM_DEV_MODE") == "true",
		BaseURL:                 envOrDefault("HM_BASE_URL", "http://localhost:8080"),
		ProviderIssuer:          os.Getenv("HM_PROVIDER_ISSUER"),
		ProviderAudience:        os.Getenv("HM_PROVIDER_AUDIENCE"),
		ProviderSecret:          os.Getenv("HM_PROVIDER_SECRET"),
		ProviderPublicKeyFile:   os.Getenv("HM_PROVIDER_PUBLIC_KEY_FILE"),
		APIKeyFailuresPerMinute: envIntOrDefault("HM_API_KEY_FAILURES_PER_MINUTE", 10),
	}
}

// ProviderEnabled reports whether identity provider sign-in is configured.
func (c Config) ProviderEnabled() bool {
	return c.ProviderIssuer != "" && (c.ProviderSecret != "" || c.ProviderPublicKeyFile != "")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
