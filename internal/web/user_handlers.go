package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/listing"
)

// handleGetProfile serves GET /api/profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(currentUser(r))
	if err != nil {
		profileError(w, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// handleUpdateProfile serves PUT /api/profile. Only the display name can
// change.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	u, err := s.users.UpdateName(currentUser(r), body.Name)
	if err != nil {
		profileError(w, err)
		return
	}
	apiJSON(w, u, http.StatusOK)
}

// handleProfileListings serves GET /api/profile/listings?cursor=&limit=.
func (s *Server) handleProfileListings(w http.ResponseWriter, r *http.Request) {
	opts := listing.ListOptions{
		UserRef: currentUser(r),
		Cursor:  r.URL.Query().Get("cursor"),
	}

	page, err := s.listings.List(opts)
	if err != nil {
		listingError(w, err)
		return
	}
	apiJSON(w, page, http.StatusOK)
}

func profileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		apiError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrUserNotFound):
		apiError(w, "user not found", http.StatusNotFound)
	default:
		slog.Error("profile request failed", "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
	}
}
