package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	apiKeyBytes = 32 // 256-bit keys

	// APIKeyPrefix starts every raw API key.
	APIKeyPrefix = "hm_"

	// MaxKeysPerUser caps how many live keys one account may hold.
	MaxKeysPerUser = 25

	displayPrefixLen = 8
)

var (
	// ErrKeyNotFound is returned when a key does not exist or belongs to
	// another user.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTooManyKeys is returned by Create once a user holds MaxKeysPerUser
	// keys.
	ErrTooManyKeys = errors.New("too many api keys")
)

// APIKey is the stored representation of an API key (no raw key).
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"-"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create generates a new API key for userID with the given name.
// Returns the raw key (shown once to user) and the stored record.
func (s *APIKeyStore) Create(userID, name string) (string, *APIKey, error) {
	n, err := s.Count(userID)
	if err != nil {
		return "", nil, err
	}
	if n >= MaxKeysPerUser {
		return "", nil, ErrTooManyKeys
	}

	raw, err := generateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}

	prefix := raw[:displayPrefixLen]
	hash := hashAPIKey(raw)

	result, err := s.db.Exec(
		"INSERT INTO api_keys (user_id, name, key_prefix, key_hash) VALUES (?, ?, ?, ?)",
		userID, name, prefix, hash,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	key := &APIKey{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyPrefix: prefix,
		CreatedAt: time.Now().UTC(),
	}

	return raw, key, nil
}

// Count returns how many keys userID holds.
func (s *APIKeyStore) Count(userID string) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM api_keys WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting keys: %w", err)
	}
	return n, nil
}

// List returns a user's API keys (without the raw key).
func (s *APIKeyStore) List(userID string) ([]APIKey, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, name, key_prefix, created_at, last_used_at FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "error", cerr)
		}
	}()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes one of a user's API keys by ID.
func (s *APIKeyStore) Delete(userID string, id int64) error {
	result, err := s.db.Exec("DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// Validate checks a raw API key against stored hashes.
// Returns the owning user ID ("" if the key is unknown) and updates
// last_used_at.
func (s *APIKeyStore) Validate(rawKey string) (string, error) {
	if !strings.HasPrefix(rawKey, APIKeyPrefix) {
		return "", nil
	}
	hash := hashAPIKey(rawKey)

	var userID string
	err := s.db.QueryRow(
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ? RETURNING user_id",
		time.Now(), hash,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("validating key: %w", err)
	}

	return userID, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
