package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/email"
	"github.com/evcraddock/house-market/internal/imagestore"
)

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleImage serves GET /v0/b/{bucket}/o/{object}, the download URLs
// handed out by the image store.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil || r.PathValue("bucket") != s.images.BucketName() {
		http.NotFound(w, r)
		return
	}

	rc, err := s.images.Open(r.Context(), r.PathValue("object"))
	if errors.Is(err, imagestore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("opening image", "object", r.PathValue("object"), "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.Warn("closing image", "err", err)
		}
	}()

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("streaming image", "err", err)
	}
}

type landlordResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleLandlord serves GET /api/listings/{id}/landlord.
func (s *Server) handleLandlord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.listings.GetByID(r.PathValue("id"))
	if err != nil {
		listingError(w, err)
		return
	}

	owner, err := s.users.GetByID(rec.UserRef)
	if errors.Is(err, auth.ErrUserNotFound) {
		apiError(w, "could not get landlord data", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("loading landlord", "user_id", rec.UserRef, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	apiJSON(w, landlordResponse{Name: owner.Name, Email: owner.Email}, http.StatusOK)
}

type contactRequest struct {
	Message string `json:"message"`
	DryRun  bool   `json:"dry_run"` // preview only, don't send
}

type contactResponse struct {
	Sent    bool     `json:"sent"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// handleContactLandlord serves POST /api/listings/{id}/contact. The owner
// receives the message with Reply-To set to the sender.
func (s *Server) handleContactLandlord(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		apiError(w, "message is required", http.StatusBadRequest)
		return
	}

	rec, err := s.listings.GetByID(r.PathValue("id"))
	if err != nil {
		listingError(w, err)
		return
	}

	userID := currentUser(r)
	if rec.UserRef == userID {
		apiError(w, "you own this listing", http.StatusBadRequest)
		return
	}

	sender, err := s.users.GetByID(userID)
	if err != nil {
		slog.Error("loading sender", "user_id", userID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	owner, err := s.users.GetByID(rec.UserRef)
	if err != nil {
		apiError(w, "could not get landlord data", http.StatusNotFound)
		return
	}

	msg := email.Message{
		To:      []string{owner.Email},
		ReplyTo: sender.Email,
		Subject: email.InquirySubject(rec),
		Body:    email.FormatInquiry(rec, email.Sender{Name: sender.Name, Email: sender.Email}, req.Message, s.authCfg.BaseURL),
	}
	resp := contactResponse{To: msg.To, Subject: msg.Subject, Body: msg.Body}

	if !req.DryRun {
		if err := s.mailer.Deliver(msg); err != nil {
			slog.Error("sending inquiry", "listing_id", rec.ID, "err", err)
			apiError(w, "sending email failed", http.StatusBadGateway)
			return
		}
		resp.Sent = true
		slog.Info("inquiry sent", "listing_id", rec.ID, "from", userID)
	}

	apiJSON(w, resp, http.StatusOK)
}
