package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ProviderPassword marks accounts that sign in with email and password.
	ProviderPassword = "password"

	minPasswordLen = 6
)

var (
	// ErrUserExists is returned when an email is already registered.
	ErrUserExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned for a bad email/password pair.
	ErrInvalidCredentials = errors.New("bad user credentials")

	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidInput is returned for a missing or malformed name, email or
	// password.
	ErrInvalidInput = errors.New("invalid account details")
)

// User is an account holder.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore manages users in SQLite.
type UserStore struct {
	db   *sql.DB
	cost int
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, cost: bcrypt.DefaultCost}
}

const userColumns = `id, email, name, provider, avatar_url, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Provider, &u.AvatarURL, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignUp registers a password account.
func (s *UserStore) SignUp(name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.NewString()
	if _, err := s.db.Exec(
		"INSERT INTO users (id, name, email, password_hash, provider) VALUES (?, ?, ?, ?, ?)",
		id, name, email, string(hash), ProviderPassword,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("adding user: %w", err)
	}

	return s.GetByID(id)
}

// Authenticate checks an email and password and returns the user.
func (s *UserStore) Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var id, hash string
	err := s.db.QueryRow(
		"SELECT id, password_hash FROM users WHERE email = ?", email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if hash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.GetByID(id)
}

// GetByID returns a user by ID.
func (s *UserStore) GetByID(id string) (*User, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByEmail returns a user by email.
func (s *UserStore) GetByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// UpdateName changes a user's display name.
func (s *UserStore) UpdateName(id, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	result, err := s.db.Exec("UPDATE users SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return nil, fmt.Errorf("updating name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetByID(id)
}

// SetPassword replaces a user's password.
func (s *UserStore) SetPassword(id, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	result, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hash), id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindOrCreateProviderUser returns the account linked to a provider
// subject, creating it on first sign-in. An email already registered with
// a different provider is rejected.
func (s *UserStore) FindOrCreateProviderUser(provider string, claims *ProviderClaims) (*User, bool, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT id FROM users WHERE provider = ? AND provider_subject = ?",
		provider, claims.Subject,
	).Scan(&id)
	if err == nil {
		u, err := s.GetByID(id)
		return u, false, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("querying provider user: %w", err)
	}

	email, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, false, err
	}
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	id = uuid.NewString()
	if _, err := s.db.Exec(
		"INSERT INTO users (id, name, email, provider, provider_subject, avatar_url) VALUES (?, ?, ?, ?, ?, ?)",
		id, name, email, provider, claims.Subject, claims.Picture,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, false, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, false, fmt.Errorf("adding provider user: %w", err)
	}

	u, err := s.GetByID(id)
	return u, true, err
}

// ValidatePassword checks the password rules.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %s", ErrInvalidInput, email)
	}
	return email, nil
}
