// Package listing provides the listing domain model, storage, and the
// create/update/delete workflow that geocodes addresses and reconciles images.
package listing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/evcraddock/house-market/internal/geocode"
	"github.com/evcraddock/house-market/internal/imagestore"
)

// Type is the listing category.
type Type string

const (
	TypeSale Type = "sale"
	TypeRent Type = "rent"
)

// ValidType returns true if s is a known listing type.
func ValidType(s string) bool {
	switch Type(s) {
	case TypeSale, TypeRent:
		return true
	}
	return false
}

const (
	// MaxImages is the most images a listing may carry.
	MaxImages = 6

	minNameLen = 10
	maxNameLen = 32
)

// Record is a persisted listing.
type Record struct {
	ID              string        `json:"id"`
	Type            Type          `json:"type"`
	Name            string        `json:"name"`
	Bedrooms        int           `json:"bedrooms"`
	Bathrooms       int           `json:"bathrooms"`
	Parking         bool          `json:"parking"`
	Furnished       bool          `json:"furnished"`
	Offer           bool          `json:"offer"`
	RegularPrice    int64         `json:"regular_price"`
	DiscountedPrice *int64        `json:"discounted_price,omitempty"`
	Location        string        `json:"location"`
	Geolocation     geocode.Point `json:"geolocation"`
	ImageURLs       []string      `json:"image_urls"`
	UserRef         string        `json:"user_ref"`
	Timestamp       time.Time     `json:"timestamp"`
}

// CoverURL returns the first image URL, or "" when there are none.
func (r *Record) CoverURL() string {
	if len(r.ImageURLs) == 0 {
		return ""
	}
	return r.ImageURLs[0]
}

// Price returns the price a buyer or tenant pays.
func (r *Record) Price() int64 {
	if r.Offer && r.DiscountedPrice != nil {
		return *r.DiscountedPrice
	}
	return r.RegularPrice
}

// scanRecord scans a listing from a database row.
func scanRecord(row interface{ Scan(...interface{}) error }) (*Record, error) {
	var r Record
	var typ, imageURLs string
	var discounted sql.NullInt64
	var ts int64

	err := row.Scan(
		&r.ID, &typ, &r.Name, &r.Bedrooms, &r.Bathrooms,
		&r.Parking, &r.Furnished, &r.Offer,
		&r.RegularPrice, &discounted, &r.Location,
		&r.Geolocation.Lat, &r.Geolocation.Lng,
		&imageURLs, &r.UserRef, &ts,
	)
	if err != nil {
		return nil, err
	}

	r.Type = Type(typ)
	if discounted.Valid {
		r.DiscountedPrice = &discounted.Int64
	}
	if err := json.Unmarshal([]byte(imageURLs), &r.ImageURLs); err != nil {
		return nil, fmt.Errorf("decoding image urls: %w", err)
	}
	if r.ImageURLs == nil {
		r.ImageURLs = []string{}
	}
	r.Timestamp = time.Unix(0, ts).UTC()

	return &r, nil
}

// Draft is the editable form of a listing. It is a value: every change
// produces a new Draft and leaves the receiver untouched.
type Draft struct {
	Type            Type
	Name            string
	Bedrooms        int
	Bathrooms       int
	Parking         bool
	Furnished       bool
	Address         string
	Offer           bool
	RegularPrice    int64
	DiscountedPrice int64
	Images          []imagestore.Blob
	Latitude        float64
	Longitude       float64
	UserRef         string
}

// NewDraft returns the empty draft used when creating a listing.
func NewDraft(userRef string) Draft {
	return Draft{
		Type:         TypeRent,
		Bedrooms:     1,
		Bathrooms:    1,
		RegularPrice: 50,
		UserRef:      userRef,
	}
}

// DraftFromRecord hydrates a draft for editing an existing listing.
func DraftFromRecord(r *Record) Draft {
	d := Draft{
		Type:         r.Type,
		Name:         r.Name,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Parking:      r.Parking,
		Furnished:    r.Furnished,
		Address:      r.Location,
		Offer:        r.Offer,
		RegularPrice: r.RegularPrice,
		Latitude:     r.Geolocation.Lat,
		Longitude:    r.Geolocation.Lng,
		UserRef:      r.UserRef,
	}
	if r.DiscountedPrice != nil {
		d.DiscountedPrice = *r.DiscountedPrice
	}
	return d
}

// Fields lists the names accepted by With.
var Fields = []string{
	"type", "name", "bedrooms", "bathrooms", "parking", "furnished",
	"address", "offer", "regularPrice", "discountedPrice", "latitude", "longitude",
}

// With returns a copy of d with one field set from its form value.
// Booleans accept "true" and "false".
func (d Draft) With(field, value string) (Draft, error) {
	next := d
	next.Images = cloneBlobs(d.Images)

	var err error
	switch field {
	case "type":
		if !ValidType(value) {
			return d, fmt.Errorf("%w: invalid type %q", ErrValidation, value)
		}
		next.Type = Type(value)
	case "name":
		next.Name = value
	case "address":
		next.Address = value
	case "bedrooms":
		next.Bedrooms, err = strconv.Atoi(strings.TrimSpace(value))
	case "bathrooms":
		next.Bathrooms, err = strconv.Atoi(strings.TrimSpace(value))
	case "parking":
		next.Parking, err = strconv.ParseBool(value)
	case "furnished":
		next.Furnished, err = strconv.ParseBool(value)
	case "offer":
		next.Offer, err = strconv.ParseBool(value)
	case "regularPrice":
		next.RegularPrice, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case "discountedPrice":
		next.DiscountedPrice, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case "latitude":
		next.Latitude, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	case "longitude":
		next.Longitude, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
	default:
		return d, fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}
	if err != nil {
		return d, fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
	}
	return next, nil
}

// WithImages returns a copy of d with its new images replaced.
func (d Draft) WithImages(images []imagestore.Blob) Draft {
	next := d
	next.Images = cloneBlobs(images)
	return next
}

// Validate checks the draft's field and price rules.
func (d Draft) Validate() error {
	if !ValidType(string(d.Type)) {
		return fmt.Errorf("%w: invalid type %q", ErrValidation, d.Type)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(d.Name)); n < minNameLen || n > maxNameLen {
		return fmt.Errorf("%w: name must be %d-%d characters", ErrValidation, minNameLen, maxNameLen)
	}
	if d.Bedrooms < 1 {
		return fmt.Errorf("%w: bedrooms must be at least 1", ErrValidation)
	}
	if d.Bathrooms < 1 {
		return fmt.Errorf("%w: bathrooms must be at least 1", ErrValidation)
	}
	if strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	if d.RegularPrice <= 0 {
		return fmt.Errorf("%w: regular price must be positive", ErrValidation)
	}
	if d.Offer {
		if d.DiscountedPrice <= 0 {
			return fmt.Errorf("%w: discounted price is required with an offer", ErrValidation)
		}
		if d.DiscountedPrice >= d.RegularPrice {
			return fmt.Errorf("%w: discounted price must be lower than regular price", ErrValidation)
		}
	}
	if d.UserRef == "" {
		return fmt.Errorf("%w: user ref is required", ErrValidation)
	}
	return nil
}

func cloneBlobs(in []imagestore.Blob) []imagestore.Blob {
	if in == nil {
		return nil
	}
	out := make([]imagestore.Blob, len(in))
	copy(out, in)
	return out
}
