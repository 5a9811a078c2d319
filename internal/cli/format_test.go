package cli

import (
	"testing"

	"github.com/evcraddock/house-market/internal/listing"
)

func TestFormatPrice(t *testing.T) {
	discount := int64(225000)
	rentDiscount := int64(1200)

	tests := []struct {
		name     string
		rec      listing.Record
		expected string
	}{
		{"sale", listing.Record{Type: listing.TypeSale, RegularPrice: 250000}, "$250,000"},
		{"rent", listing.Record{Type: listing.TypeRent, RegularPrice: 1500}, "$1,500/mo"},
		{"sale offer", listing.Record{Type: listing.TypeSale, RegularPrice: 250000, Offer: true, DiscountedPrice: &discount}, "$225,000 (offer)"},
		{"rent offer", listing.Record{Type: listing.TypeRent, RegularPrice: 1500, Offer: true, DiscountedPrice: &rentDiscount}, "$1,200/mo (offer)"},
		{"stale discount", listing.Record{Type: listing.TypeSale, RegularPrice: 999, DiscountedPrice: &discount}, "$999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatPrice(&tt.rec)
			if result != tt.expected {
				t.Errorf("formatPrice() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}
