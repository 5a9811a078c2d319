package web

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/house-market/internal/auth"
)

const (
	passkeyLoginCookie = "hm_passkey_login"
	ceremonyTimeout    = 5 * time.Minute
)

// passkeyHandlers holds WebAuthn-related HTTP handlers.
type passkeyHandlers struct {
	wan      *webauthn.WebAuthn
	passkeys *auth.PasskeyStore
	sessions *auth.SessionStore
	users    *auth.UserStore

	// In-flight ceremonies. Registrations are keyed by user ID, logins by
	// the value of the passkeyLoginCookie.
	mu          sync.Mutex
	regSessions map[string]*webauthn.SessionData
	logins      map[string]*webauthn.SessionData
}

func newPasskeyHandlers(cfg auth.Config, passkeys *auth.PasskeyStore, sessions *auth.SessionStore, users *auth.UserStore) (*passkeyHandlers, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "House Market",
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}

	return &passkeyHandlers{
		wan:         wan,
		passkeys:    passkeys,
		sessions:    sessions,
		users:       users,
		regSessions: make(map[string]*webauthn.SessionData),
		logins:      make(map[string]*webauthn.SessionData),
	}, nil
}

func (h *passkeyHandlers) passkeyUser(userID string) (*auth.PasskeyUser, []webauthn.Credential, error) {
	u, err := h.users.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	creds, err := h.passkeys.WebAuthnCredentials(userID)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewPasskeyUser(u, creds), creds, nil
}

// handleBeginRegistration starts passkey registration for the signed-in user.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	user, creds, err := h.passkeyUser(userID)
	if err != nil {
		slog.Error("loading passkey user", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Exclude existing credentials so user doesn't re-register the same key
	excludeList := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		excludeList[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		slog.Error("beginning registration", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.regSessions[userID] = session
	h.mu.Unlock()

	apiJSON(w, creation, http.StatusOK)
}

// handleFinishRegistration completes passkey registration.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	h.mu.Lock()
	session, ok := h.regSessions[userID]
	if ok {
		delete(h.regSessions, userID)
	}
	h.mu.Unlock()

	if !ok {
		apiError(w, "no registration in progress", http.StatusBadRequest)
		return
	}

	user, _, err := h.passkeyUser(userID)
	if err != nil {
		slog.Error("loading passkey user", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	credential, err := h.wan.FinishRegistration(user, *session, r)
	if err != nil {
		slog.Warn("finishing registration", "err", err)
		apiError(w, "registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}

	if err := h.passkeys.Save(userID, name, credential); err != nil {
		slog.Error("saving credential", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleBeginLogin starts a discoverable passkey login.
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		slog.Error("beginning passkey login", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	key := hex.EncodeToString(b)

	h.mu.Lock()
	h.pruneLogins()
	h.logins[key] = session
	h.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     passkeyLoginCookie,
		Value:    key,
		Path:     "/passkey/login",
		MaxAge:   int(ceremonyTimeout.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	apiJSON(w, assertion, http.StatusOK)
}

// pruneLogins drops abandoned login ceremonies. Callers hold h.mu.
func (h *passkeyHandlers) pruneLogins() {
	now := time.Now()
	for k, sd := range h.logins {
		if !sd.Expires.IsZero() && now.After(sd.Expires) {
			delete(h.logins, k)
		}
	}
}

// handleFinishLogin completes passkey login and creates a session.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(passkeyLoginCookie)
	if err != nil {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	session, ok := h.logins[cookie.Value]
	delete(h.logins, cookie.Value)
	h.mu.Unlock()

	if !ok {
		apiError(w, "no login in progress", http.StatusBadRequest)
		return
	}

	// The user handle is the account ID set at registration.
	var loggedIn string
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		user, _, err := h.passkeyUser(string(userHandle))
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		loggedIn = string(userHandle)
		return user, nil
	}

	_, credential, err := h.wan.FinishPasskeyLogin(handler, *session, r)
	if err != nil {
		slog.Warn("finishing passkey login", "err", err)
		apiError(w, "login failed", http.StatusUnauthorized)
		return
	}

	if err := h.passkeys.UpdateCredential(loggedIn, credential); err != nil {
		slog.Warn("updating credential", "err", err)
	}

	if err := h.sessions.Create(w, loggedIn); err != nil {
		slog.Error("creating session", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("login success", "user_id", loggedIn, "method", "passkey")
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleListPasskeys serves GET /api/passkeys.
func (h *passkeyHandlers) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	stored, err := h.passkeys.ListByUser(currentUser(r))
	if err != nil {
		slog.Error("listing passkeys", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, stored, http.StatusOK)
}

// handleDeletePasskey serves DELETE /api/passkeys/{id}.
func (h *passkeyHandlers) handleDeletePasskey(w http.ResponseWriter, r *http.Request) {
	if err := h.passkeys.Delete(r.PathValue("id"), currentUser(r)); err != nil {
		apiError(w, "passkey not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
