package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evcraddock/house-market/internal/auth"
)

type apiKeyCreateResponse struct {
	Key    string       `json:"key"` // raw key, shown once
	APIKey *auth.APIKey `json:"api_key"`
}

// handleCreateKey serves POST /api/keys.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = "API Key"
	}

	rawKey, key, err := s.apiKeys.Create(currentUser(r), name)
	if errors.Is(err, auth.ErrTooManyKeys) {
		apiError(w, "key limit reached; revoke an old key first", http.StatusConflict)
		return
	}
	if err != nil {
		slog.Error("creating api key", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	apiJSON(w, apiKeyCreateResponse{Key: rawKey, APIKey: key}, http.StatusCreated)
}

// handleListKeys serves GET /api/keys. Raw keys are never returned.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.List(currentUser(r))
	if err != nil {
		slog.Error("listing api keys", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	apiJSON(w, keys, http.StatusOK)
}

// handleDeleteKey serves DELETE /api/keys/{id}.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}

	err = s.apiKeys.Delete(currentUser(r), id)
	if errors.Is(err, auth.ErrKeyNotFound) {
		apiError(w, "key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("deleting api key", "id", id, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
