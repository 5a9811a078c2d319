package listing

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize is the page size used when ListOptions.Limit is zero.
	DefaultPageSize = 10
	maxPageSize     = 100

	// RecentCount is the number of listings shown in the recent slider.
	RecentCount = 5
)

// Repository provides storage for listing records.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, type, name, bedrooms, bathrooms, parking, furnished, offer, regular_price, discounted_price, location, lat, lng, image_urls, user_ref, timestamp`

const insertSQL = `INSERT INTO listings
	(id, type, name, bedrooms, bathrooms, parking, furnished, offer, regular_price, discounted_price, location, lat, lng, image_urls, user_ref, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateSQL = `UPDATE listings SET
	type = ?, name = ?, bedrooms = ?, bathrooms = ?, parking = ?, furnished = ?, offer = ?,
	regular_price = ?, discounted_price = ?, location = ?, lat = ?, lng = ?, image_urls = ?,
	user_ref = ?, timestamp = ?
	WHERE id = ?`

// Insert stores a new record.
func (r *Repository) Insert(rec *Record) error {
	imageURLs, err := encodeImageURLs(rec.ImageURLs)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(insertSQL,
		rec.ID, string(rec.Type), rec.Name, rec.Bedrooms, rec.Bathrooms,
		rec.Parking, rec.Furnished, rec.Offer,
		rec.RegularPrice, rec.DiscountedPrice, rec.Location,
		rec.Geolocation.Lat, rec.Geolocation.Lng,
		imageURLs, rec.UserRef, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting listing: %w", err)
	}
	return nil
}

// Update replaces every field of the record stored under rec.ID.
func (r *Repository) Update(rec *Record) error {
	imageURLs, err := encodeImageURLs(rec.ImageURLs)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(updateSQL,
		string(rec.Type), rec.Name, rec.Bedrooms, rec.Bathrooms,
		rec.Parking, rec.Furnished, rec.Offer,
		rec.RegularPrice, rec.DiscountedPrice, rec.Location,
		rec.Geolocation.Lat, rec.Geolocation.Lng,
		imageURLs, rec.UserRef, rec.Timestamp.UnixNano(),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	return nil
}

// GetByID returns a listing by its ID.
func (r *Repository) GetByID(id string) (*Record, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = ?", selectColumns)
	rec, err := scanRecord(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes a listing by ID.
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListOptions controls filtering and paging for List.
type ListOptions struct {
	Type      Type   // empty = all
	OfferOnly bool
	UserRef   string // empty = all owners
	Cursor    string // from a previous Page.NextCursor
	Limit     int    // 0 = DefaultPageSize
}

// Page is one page of listings, newest first.
type Page struct {
	Listings   []*Record `json:"listings"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// List returns a page of listings ordered by timestamp, newest first.
func (r *Repository) List(opts ListOptions) (page *Page, err error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	query := fmt.Sprintf("SELECT %s FROM listings", selectColumns)
	var args []interface{}
	var conditions []string

	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.OfferOnly {
		conditions = append(conditions, "offer = 1")
	}
	if opts.UserRef != "" {
		conditions = append(conditions, "user_ref = ?")
		args = append(args, opts.UserRef)
	}
	if opts.Cursor != "" {
		ts, id, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, "(timestamp < ? OR (timestamp = ? AND id < ?))")
		args = append(args, ts, ts, id)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	listings := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	page = &Page{Listings: listings}
	if len(listings) > limit {
		page.Listings = listings[:limit]
		page.HasMore = true
		last := page.Listings[limit-1]
		page.NextCursor = encodeCursor(last.Timestamp, last.ID)
	}
	return page, nil
}

// Recent returns the newest n listings of any type.
func (r *Repository) Recent(n int) ([]*Record, error) {
	if n <= 0 {
		n = RecentCount
	}
	page, err := r.List(ListOptions{Limit: n})
	if err != nil {
		return nil, err
	}
	return page.Listings, nil
}

func encodeImageURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("encoding image urls: %w", err)
	}
	return string(b), nil
}

// encodeCursor packs the sort key of the last listing on a page.
func encodeCursor(ts time.Time, id string) string {
	raw := strconv.FormatInt(ts.UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	tsPart, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid cursor", ErrValidation)
	}
	return ts, id, nil
}
