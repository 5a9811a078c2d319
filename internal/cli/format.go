package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/evcraddock/house-market/internal/email"
	"github.com/evcraddock/house-market/internal/listing"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printListingSummary prints a single listing in text format.
func printListingSummary(r *listing.Record) {
	fmt.Printf("Listing %s\n", r.ID)
	fmt.Printf("  Name:     %s\n", r.Name)
	fmt.Printf("  Type:     %s\n", r.Type)
	fmt.Printf("  Price:    %s\n", formatPrice(r))
	if r.Offer && r.DiscountedPrice != nil {
		fmt.Printf("  Regular:  $%s\n", email.FormatWithCommas(r.RegularPrice))
	}
	fmt.Printf("  Beds:     %d\n", r.Bedrooms)
	fmt.Printf("  Baths:    %d\n", r.Bathrooms)
	fmt.Printf("  Parking:  %s\n", yesNo(r.Parking))
	fmt.Printf("  Furnished: %s\n", yesNo(r.Furnished))
	fmt.Printf("  Address:  %s\n", r.Location)
	fmt.Printf("  Location: %.6f, %.6f\n", r.Geolocation.Lat, r.Geolocation.Lng)
	fmt.Printf("  Listed:   %s\n", r.Timestamp.Format("2006-01-02 15:04"))
}

// printListingTable prints listings as a formatted table.
func printListingTable(recs []*listing.Record) error {
	if len(recs) == 0 {
		fmt.Println("No listings found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tTYPE\tNAME\tPRICE\tBED\tBATH\tADDRESS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t----\t-----\t---\t----\t-------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Type, truncate(r.Name, 32), formatPrice(r), r.Bedrooms, r.Bathrooms, truncate(r.Location, 40)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d listings\n", len(recs))
	return nil
}

// printWarnings reports non-fatal problems from a write.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

// formatPrice returns the price a buyer or tenant pays, marking offers and
// monthly rents.
func formatPrice(r *listing.Record) string {
	s := "$" + email.FormatWithCommas(r.Price())
	if r.Type == listing.TypeRent {
		s += "/mo"
	}
	if r.Offer && r.DiscountedPrice != nil {
		s += " (offer)"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
