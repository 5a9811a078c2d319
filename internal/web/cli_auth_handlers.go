package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/house-market/internal/auth"
)

type cliTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"` // key label, defaults to "CLI"
}

type cliTokenResponse struct {
	Key  string     `json:"key"`
	User *auth.User `json:"user"`
}

// handleCLIToken serves POST /cli/auth/token. It exchanges an email and
// password for a new API key, for `hm login`.
func (s *Server) handleCLIToken(w http.ResponseWriter, r *http.Request) {
	var req cliTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := s.users.Authenticate(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		apiError(w, "bad user credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("cli sign-in", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "CLI"
	}

	rawKey, _, err := s.apiKeys.Create(u.ID, name)
	if errors.Is(err, auth.ErrTooManyKeys) {
		apiError(w, "key limit reached; revoke an old key first", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("creating api key", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("login success", "user_id", u.ID, "method", "cli")
	apiJSON(w, cliTokenResponse{Key: rawKey, User: u}, http.StatusCreated)
}
