package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/evcraddock/house-market/internal/imagestore"
	"github.com/evcraddock/house-market/internal/listing"
)

const (
	maxImageBytes  = 8 << 20
	maxUploadBytes = listing.MaxImages*maxImageBytes + 1<<20
	formMemory     = 32 << 20

	// Form field for new image files.
	imagesField = "images"
	// Form field, repeated, for image URLs to drop from a listing.
	removeField = "removeImageUrls"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// listingStatus maps a listing workflow error to an HTTP status.
func listingStatus(err error) int {
	switch {
	case errors.Is(err, listing.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, listing.ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, listing.ErrImageUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, listing.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, listing.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// listingError writes err with its mapped status. Internal errors are
// logged and replaced with a generic message.
func listingError(w http.ResponseWriter, err error) {
	code := listingStatus(err)
	if code == http.StatusInternalServerError {
		slog.Error("listing request failed", "err", err)
		if errors.Is(err, listing.ErrPersistence) {
			apiError(w, listing.ErrPersistence.Error(), code)
			return
		}
		apiError(w, "internal error", code)
		return
	}
	apiError(w, err.Error(), code)
}

// writeResponse is the body returned by create and update.
type writeResponse struct {
	Listing  *listing.Record `json:"listing"`
	Warnings []string        `json:"warnings,omitempty"`
	Redirect string          `json:"redirect"`
}

type deleteResponse struct {
	Deleted  string   `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
}

func warningStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// handleListListings serves GET /api/listings?type=&offers=&cursor=&limit=.
func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := listing.ListOptions{Cursor: q.Get("cursor")}

	if t := q.Get("type"); t != "" {
		if !listing.ValidType(t) {
			apiError(w, fmt.Sprintf("invalid type %q (want sale or rent)", t), http.StatusBadRequest)
			return
		}
		opts.Type = listing.Type(t)
	}
	if v := q.Get("offers"); v != "" {
		offers, err := strconv.ParseBool(v)
		if err != nil {
			apiError(w, "offers must be true or false", http.StatusBadRequest)
			return
		}
		opts.OfferOnly = offers
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			apiError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	page, err := s.listings.List(opts)
	if err != nil {
		listingError(w, err)
		return
	}
	apiJSON(w, page, http.StatusOK)
}

// handleRecentListings serves GET /api/listings/recent.
func (s *Server) handleRecentListings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.listings.Recent(listing.RecentCount)
	if err != nil {
		listingError(w, err)
		return
	}
	apiJSON(w, recs, http.StatusOK)
}

// handleGetListing serves GET /api/listings/{id}.
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	rec, err := s.listings.GetByID(r.PathValue("id"))
	if err != nil {
		listingError(w, err)
		return
	}
	apiJSON(w, rec, http.StatusOK)
}

// handleCreateListing serves POST /api/listings (multipart form).
func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	draft, removed, err := parseListingForm(w, r, listing.NewDraft(userID))
	if err != nil {
		formError(w, err)
		return
	}
	if len(removed) > 0 {
		apiError(w, "a new listing has no images to remove", http.StatusBadRequest)
		return
	}

	res, err := s.service.Create(r.Context(), userID, draft)
	if err != nil {
		listingError(w, err)
		return
	}

	apiJSON(w, writeResponse{
		Listing:  res.Record,
		Warnings: warningStrings(res.Warnings),
		Redirect: res.Redirect,
	}, http.StatusCreated)
}

// handleUpdateListing serves PUT /api/listings/{id} (multipart form).
// Fields that are absent keep their current values.
func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := currentUser(r)

	existing, err := s.listings.GetByID(id)
	if err != nil {
		listingError(w, err)
		return
	}
	if existing.UserRef != userID {
		listingError(w, listing.ErrForbidden)
		return
	}

	draft, removed, err := parseListingForm(w, r, listing.DraftFromRecord(existing))
	if err != nil {
		formError(w, err)
		return
	}

	res, err := s.service.Update(r.Context(), userID, id, draft, removed)
	if err != nil {
		listingError(w, err)
		return
	}

	apiJSON(w, writeResponse{
		Listing:  res.Record,
		Warnings: warningStrings(res.Warnings),
		Redirect: res.Redirect,
	}, http.StatusOK)
}

// handleDeleteListing serves DELETE /api/listings/{id}.
func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	warnings, err := s.service.Delete(r.Context(), currentUser(r), id)
	if err != nil {
		listingError(w, err)
		return
	}
	apiJSON(w, deleteResponse{Deleted: id, Warnings: warningStrings(warnings)}, http.StatusOK)
}

// parseListingForm applies the submitted fields to base and reads any new
// image files and removal URLs.
func parseListingForm(w http.ResponseWriter, r *http.Request, base listing.Draft) (listing.Draft, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return base, nil, err
		}
		if err := r.ParseForm(); err != nil {
			return base, nil, err
		}
	}

	draft := base
	for _, field := range listing.Fields {
		values, ok := r.PostForm[field]
		if !ok || len(values) == 0 {
			continue
		}
		next, err := draft.With(field, values[0])
		if err != nil {
			return base, nil, err
		}
		draft = next
	}

	var removed []string
	for _, u := range r.PostForm[removeField] {
		if u = strings.TrimSpace(u); u != "" {
			removed = append(removed, u)
		}
	}

	if r.MultipartForm != nil {
		files := r.MultipartForm.File[imagesField]
		blobs := make([]imagestore.Blob, 0, len(files))
		for _, fh := range files {
			blob, err := readBlob(fh)
			if err != nil {
				return base, nil, err
			}
			blobs = append(blobs, blob)
		}
		draft = draft.WithImages(blobs)
	}

	return draft, removed, nil
}

// readBlob loads one uploaded image into memory.
func readBlob(fh *multipart.FileHeader) (imagestore.Blob, error) {
	if fh.Size > maxImageBytes {
		return imagestore.Blob{}, fmt.Errorf("%w: %s is larger than %d MB", listing.ErrValidation, fh.Filename, maxImageBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return imagestore.Blob{}, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing upload", "file", fh.Filename, "err", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return imagestore.Blob{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return imagestore.Blob{}, fmt.Errorf("%w: %s is not an image", listing.ErrValidation, fh.Filename)
	}

	return imagestore.Blob{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

// formError maps a form parsing failure to a response.
func formError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), strings.Contains(err.Error(), "request body too large"):
		apiError(w, "upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, listing.ErrValidation):
		apiError(w, err.Error(), http.StatusBadRequest)
	default:
		apiError(w, fmt.Sprintf("invalid form: %v", err), http.StatusBadRequest)
	}
}
