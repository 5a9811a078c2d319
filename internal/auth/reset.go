package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const resetTokenExpiry = time.Hour

// ErrInvalidResetToken is returned for unknown, used, or expired tokens.
var ErrInvalidResetToken = errors.New("invalid or expired reset link")

// ResetTokenStore manages single-use password reset tokens in SQLite.
type ResetTokenStore struct {
	db *sql.DB
}

// NewResetTokenStore creates a reset token store.
func NewResetTokenStore(db *sql.DB) *ResetTokenStore {
	return &ResetTokenStore{db: db}
}

// Create generates a new reset token for the given user.
// Returns the raw token string.
func (s *ResetTokenStore) Create(userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().Add(resetTokenExpiry)

	if _, err := s.db.Exec(
		"INSERT INTO reset_tokens (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt,
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Consume checks a token and returns the associated user ID.
// The token is marked as used and cannot be reused.
func (s *ResetTokenStore) Consume(token string) (string, error) {
	var userID string
	var used int
	var expiresAt time.Time

	err := s.db.QueryRow(
		"SELECT user_id, used, expires_at FROM reset_tokens WHERE token = ?",
		token,
	).Scan(&userID, &used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	if used != 0 || time.Now().After(expiresAt) {
		return "", ErrInvalidResetToken
	}

	result, err := s.db.Exec(
		"UPDATE reset_tokens SET used = 1 WHERE token = ? AND used = 0",
		token,
	)
	if err != nil {
		return "", fmt.Errorf("marking token used: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return "", ErrInvalidResetToken
	}

	return userID, nil
}

// Cleanup removes expired and used tokens and returns how many were
// removed.
func (s *ResetTokenStore) Cleanup() (int64, error) {
	result, err := s.db.Exec("DELETE FROM reset_tokens WHERE expires_at < ? OR used = 1", time.Now())
	if err != nil {
		return 0, fmt.Errorf("cleaning up tokens: %w", err)
	}
	return result.RowsAffected()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
