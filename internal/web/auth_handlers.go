package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/house-market/internal/auth"
)

const providerName = "provider"

// Always the same, so the response does not reveal which emails exist.
const resetSentMsg = "If that email is registered, a reset link has been sent. Check your inbox."

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type providerRequest struct {
	IDToken string `json:"id_token"`
}

type providerResponse struct {
	User    *auth.User `json:"user"`
	Created bool       `json:"created"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// startSession sets the session cookie for u and writes u as the body.
func (s *Server) startSession(w http.ResponseWriter, u *auth.User, method string, body interface{}, code int) {
	if err := s.sessions.Create(w, u.ID); err != nil {
		slog.Error("creating session", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("login success", "user_id", u.ID, "method", method)
	apiJSON(w, body, code)
}

// handleSignUp serves POST /auth/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.users.SignUp(req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		apiError(w, auth.ErrUserExists.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidInput):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("signing up", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.startSession(w, u, auth.ProviderPassword, u, http.StatusCreated)
}

// handleSignIn serves POST /auth/signin.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.users.Authenticate(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		apiError(w, "bad user credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("signing in", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.startSession(w, u, auth.ProviderPassword, u, http.StatusOK)
}

// handleProviderSignIn serves POST /auth/provider. The first sign-in with a
// provider account creates the user.
func (s *Server) handleProviderSignIn(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		apiError(w, "provider sign-in is not configured", http.StatusNotFound)
		return
	}

	var req providerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := s.provider.Verify(req.IDToken)
	if err != nil {
		slog.Warn("provider token rejected", "err", err)
		apiError(w, "could not authorize with provider", http.StatusUnauthorized)
		return
	}

	u, created, err := s.users.FindOrCreateProviderUser(providerName, claims)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		apiError(w, auth.ErrUserExists.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidInput):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("provider sign-in", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	s.startSession(w, u, providerName, providerResponse{User: u, Created: created}, code)
}

// handleLogout serves POST /auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		slog.Error("destroying session", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleForgotPassword serves POST /auth/forgot-password.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		apiError(w, "email is required", http.StatusBadRequest)
		return
	}

	u, err := s.users.GetByEmail(req.Email)
	if err == nil {
		token, tokenErr := s.resets.Create(u.ID)
		if tokenErr != nil {
			slog.Error("creating reset token", "err", tokenErr)
		} else if _, sendErr := s.mailer.SendPasswordReset(u.Email, token); sendErr != nil {
			slog.Error("sending reset email", "err", sendErr)
		}
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		slog.Error("looking up user", "err", err)
	}

	apiJSON(w, map[string]string{"message": resetSentMsg}, http.StatusAccepted)
}

// handleResetPassword serves POST /auth/reset-password. All of the user's
// sessions end once the password changes.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID, err := s.resets.Consume(req.Token)
	if errors.Is(err, auth.ErrInvalidResetToken) {
		apiError(w, "invalid or expired reset link", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("consuming reset token", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.users.SetPassword(userID, req.Password); err != nil {
		slog.Error("setting password", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.sessions.DestroyAllForUser(userID); err != nil {
		slog.Error("ending sessions", "user_id", userID, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
