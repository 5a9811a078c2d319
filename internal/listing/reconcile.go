package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/house-market/internal/geocode"
)

// MergeImageURLs returns existing minus removed, in original order, followed
// by added. The first URL is the listing's cover.
func MergeImageURLs(existing, removed, added []string) []string {
	drop := make(map[string]struct{}, len(removed))
	for _, u := range removed {
		drop[u] = struct{}{}
	}

	merged := make([]string, 0, len(existing)+len(added))
	for _, u := range existing {
		if _, ok := drop[u]; ok {
			continue
		}
		merged = append(merged, u)
	}
	return append(merged, added...)
}

// CheckImageCapacity reports ErrTooManyImages when newCount images do not
// fit next to the images that survive removal.
func CheckImageCapacity(existing, removed []string, newCount int) error {
	available := MaxImages - len(existing) + len(removed)
	if newCount > available {
		return fmt.Errorf("%w: %d new, %d slots available", ErrTooManyImages, newCount, available)
	}
	return nil
}

// checkRemovals makes sure every removed URL belongs to the listing and
// returns the list without duplicates.
func checkRemovals(existing, removed []string) ([]string, error) {
	have := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		have[u] = struct{}{}
	}

	seen := make(map[string]struct{}, len(removed))
	out := make([]string, 0, len(removed))
	for _, u := range removed {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := have[u]; !ok {
			return nil, fmt.Errorf("%w: image %q is not part of this listing", ErrValidation, u)
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

// BuildRecord turns a draft into the record to persist. The address and
// images are dropped, the location comes from the resolved address, and the
// discounted price is kept only while an offer is active.
func BuildRecord(d Draft, id string, resolved geocode.Result, imageURLs []string, now time.Time) Record {
	r := Record{
		ID:           id,
		Type:         d.Type,
		Name:         strings.TrimSpace(d.Name),
		Bedrooms:     d.Bedrooms,
		Bathrooms:    d.Bathrooms,
		Parking:      d.Parking,
		Furnished:    d.Furnished,
		Offer:        d.Offer,
		RegularPrice: d.RegularPrice,
		Location:     resolved.Address,
		Geolocation:  resolved.Point,
		ImageURLs:    imageURLs,
		UserRef:      d.UserRef,
		Timestamp:    now.UTC(),
	}
	if r.ImageURLs == nil {
		r.ImageURLs = []string{}
	}
	if d.Offer {
		discounted := d.DiscountedPrice
		r.DiscountedPrice = &discounted
	}
	return r
}
