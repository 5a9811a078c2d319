package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/webauthn"
)

// PasskeyUser implements webauthn.User for an account.
// The WebAuthn user handle is the account ID, so discoverable logins map
// straight back to a user.
type PasskeyUser struct {
	id          string
	name        string
	displayName string
	credentials []webauthn.Credential
}

// NewPasskeyUser creates a PasskeyUser for the given account.
func NewPasskeyUser(u *User, credentials []webauthn.Credential) *PasskeyUser {
	return &PasskeyUser{
		id:          u.ID,
		name:        u.Email,
		displayName: u.Name,
		credentials: credentials,
	}
}

// WebAuthnID returns the account ID.
func (u *PasskeyUser) WebAuthnID() []byte { return []byte(u.id) }

// WebAuthnName returns the account email.
func (u *PasskeyUser) WebAuthnName() string { return u.name }

// WebAuthnDisplayName returns the account's display name.
func (u *PasskeyUser) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.name
	}
	return u.displayName
}

// WebAuthnCredentials returns the stored credentials.
func (u *PasskeyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// PasskeyStore manages passkey credentials in SQLite.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(db *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: db}
}

// StoredCredential is a passkey credential with metadata.
type StoredCredential struct {
	ID         string              `json:"id"`
	UserID     string              `json:"-"`
	Name       string              `json:"name"`
	Credential webauthn.Credential `json:"-"`
}

func credentialKey(cred *webauthn.Credential) string {
	return fmt.Sprintf("%x", cred.ID)
}

// Save stores a new passkey credential for a user.
func (s *PasskeyStore) Save(userID, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO passkey_credentials (id, user_id, name, credential_json) VALUES (?, ?, ?, ?)",
		credentialKey(cred), userID, name, string(data),
	); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// UpdateCredential replaces the stored credential data, keeping sign counts
// current after a login.
func (s *PasskeyStore) UpdateCredential(userID string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	if _, err := s.db.Exec(
		"UPDATE passkey_credentials SET credential_json = ? WHERE id = ? AND user_id = ?",
		string(data), credentialKey(cred), userID,
	); err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	return nil
}

// ListByUser returns all credentials for the given user.
func (s *PasskeyStore) ListByUser(userID string) ([]StoredCredential, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, name, credential_json FROM passkey_credentials WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("closing rows", "err", err)
		}
	}()

	result := []StoredCredential{}
	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Name, &data); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		result = append(result, sc)
	}

	return result, rows.Err()
}

// WebAuthnCredentials returns just the webauthn.Credential slice for the given user.
func (s *PasskeyStore) WebAuthnCredentials(userID string) ([]webauthn.Credential, error) {
	stored, err := s.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}

	return creds, nil
}

// Delete removes a credential by ID.
func (s *PasskeyStore) Delete(id, userID string) error {
	result, err := s.db.Exec(
		"DELETE FROM passkey_credentials WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential not found")
	}

	return nil
}
