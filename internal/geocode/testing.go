package geocode

// SetTestURL overrides the geocoding endpoint on a client for testing.
// This should only be used in tests.
func SetTestURL(c *Client, geocodeURL string) {
	if geocodeURL != "" {
		c.geocodeURL = geocodeURL
	}
}
