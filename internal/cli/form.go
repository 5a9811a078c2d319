package cli

import (
	"github.com/spf13/pflag"
)

// formFields maps listing flags to the server's form field names.
var formFields = []struct {
	flag, field string
}{
	{"type", "type"},
	{"name", "name"},
	{"bedrooms", "bedrooms"},
	{"bathrooms", "bathrooms"},
	{"parking", "parking"},
	{"furnished", "furnished"},
	{"address", "address"},
	{"offer", "offer"},
	{"regular-price", "regularPrice"},
	{"discounted-price", "discountedPrice"},
	{"latitude", "latitude"},
	{"longitude", "longitude"},
}

// addListingFlags registers the listing field flags on fs.
func addListingFlags(fs *pflag.FlagSet) {
	fs.String("type", "", "sale or rent")
	fs.String("name", "", "listing name (10-32 characters)")
	fs.Int("bedrooms", 0, "number of bedrooms")
	fs.Int("bathrooms", 0, "number of bathrooms")
	fs.Bool("parking", false, "parking spot included")
	fs.Bool("furnished", false, "furnished")
	fs.String("address", "", "street address")
	fs.Bool("offer", false, "listing has a discounted price")
	fs.Int64("regular-price", 0, "price in dollars (monthly for rent)")
	fs.Int64("discounted-price", 0, "discounted price in dollars")
	fs.Float64("latitude", 0, "latitude, used when geocoding is off")
	fs.Float64("longitude", 0, "longitude, used when geocoding is off")
}

// changedFields returns the form values of the listing flags set on the
// command line. Unset flags are left out so the server keeps its values.
func changedFields(fs *pflag.FlagSet) map[string]string {
	fields := make(map[string]string)
	for _, f := range formFields {
		if fs.Changed(f.flag) {
			fields[f.field] = fs.Lookup(f.flag).Value.String()
		}
	}
	return fields
}
