// Package client provides an HTTP client for the house-market REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/listing"
)

// Client is an HTTP client for the house-market API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ListOptions controls filtering and paging for ListListings.
type ListOptions struct {
	Type       string // sale, rent (empty = all)
	OffersOnly bool
	Cursor     string
	Limit      int
}

// ListingForm is the body of a create or update request. Fields uses the
// server's form names (name, regularPrice, ...). Images are local file
// paths uploaded in order.
type ListingForm struct {
	Fields map[string]string
	Images []string
	Remove []string
}

// WriteResponse is returned by create and update.
type WriteResponse struct {
	Listing  *listing.Record `json:"listing"`
	Warnings []string        `json:"warnings,omitempty"`
	Redirect string          `json:"redirect"`
}

// DeleteResponse is returned by delete.
type DeleteResponse struct {
	Deleted  string   `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
}

// Landlord is a listing owner's public contact.
type Landlord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContactResponse is the response from POST /api/listings/{id}/contact.
type ContactResponse struct {
	Sent    bool     `json:"sent"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// TokenResponse is the response from POST /cli/auth/token.
type TokenResponse struct {
	Key  string     `json:"key"`
	User *auth.User `json:"user"`
}

// ListListings returns one page of listings, newest first.
func (c *Client) ListListings(opts ListOptions) (*listing.Page, error) {
	params := url.Values{}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.OffersOnly {
		params.Set("offers", "true")
	}
	if opts.Cursor != "" {
		params.Set("cursor", opts.Cursor)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := "/api/listings"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page listing.Page
	if err := c.get(path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecentListings returns the newest listings.
func (c *Client) RecentListings() ([]*listing.Record, error) {
	var recs []*listing.Record
	if err := c.get("/api/listings/recent", &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetListing returns a single listing.
func (c *Client) GetListing(id string) (*listing.Record, error) {
	var rec listing.Record
	if err := c.get("/api/listings/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateListing creates a listing from form.
func (c *Client) CreateListing(form ListingForm) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.sendForm("POST", "/api/listings", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateListing applies form to an existing listing. Fields left out of
// form keep their stored values.
func (c *Client) UpdateListing(id string, form ListingForm) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.sendForm("PUT", "/api/listings/"+url.PathEscape(id), form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteListing removes a listing and its images.
func (c *Client) DeleteListing(id string) (*DeleteResponse, error) {
	req, err := http.NewRequest("DELETE", c.baseURL+"/api/listings/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var resp DeleteResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLandlord returns the owner contact for a listing.
func (c *Client) GetLandlord(id string) (*Landlord, error) {
	var l Landlord
	if err := c.get("/api/listings/"+url.PathEscape(id)+"/landlord", &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ContactLandlord emails the owner of a listing. With dryRun set the server
// only renders the message.
func (c *Client) ContactLandlord(id, message string, dryRun bool) (*ContactResponse, error) {
	body := map[string]interface{}{"message": message, "dry_run": dryRun}
	var resp ContactResponse
	if err := c.post("/api/listings/"+url.PathEscape(id)+"/contact", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile returns the signed-in user.
func (c *Client) Profile() (*auth.User, error) {
	var u auth.User
	if err := c.get("/api/profile", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateToken exchanges an email and password for a new API key.
func (c *Client) CreateToken(email, password, name string) (*TokenResponse, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	var resp TokenResponse
	if err := c.post("/cli/auth/token", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListKeys returns the signed-in user's API keys. Raw keys are never
// returned.
func (c *Client) ListKeys() ([]auth.APIKey, error) {
	var keys []auth.APIKey
	if err := c.get("/api/keys", &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteKey revokes an API key.
func (c *Client) DeleteKey(id int64) error {
	req, err := http.NewRequest("DELETE", fmt.Sprintf("%s/api/keys/%d", c.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

// sendForm sends form as multipart/form-data.
func (c *Client) sendForm(method, path string, form ListingForm, result interface{}) error {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req, result)
}

func encodeForm(form ListingForm) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, form.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	for _, u := range form.Remove {
		if err := mw.WriteField("removeImageUrls", u); err != nil {
			return nil, "", fmt.Errorf("writing removal: %w", err)
		}
	}
	for _, path := range form.Images {
		if err := addFile(mw, path); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			fmt.Printf("warning: closing %s: %v\n", path, cerr)
		}
	}()

	part, err := mw.CreateFormFile("images", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("adding image: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading image %s: %w", path, err)
	}
	return nil
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}
