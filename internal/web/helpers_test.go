package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/db"
	"github.com/evcraddock/house-market/internal/geocode"
	"github.com/evcraddock/house-market/internal/imagestore"
)

const (
	testBaseURL = "http://localhost:8080"
	testBucket  = "test-bucket"
)

// pngBytes sniffs as image/png.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake-image-data")

type testEnv struct {
	srv *Server
	db  *sql.DB
}

func testConfig() auth.Config {
	return auth.Config{DevMode: true, BaseURL: testBaseURL, APIKeyFailuresPerMinute: 10}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testConfig(), nil)
}

func newTestEnvWith(t *testing.T, cfg auth.Config, resolver *geocode.Resolver) *testEnv {
	t.Helper()

	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	bucket, err := imagestore.NewFileBucket(testBucket, t.TempDir())
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}

	srv, err := NewServer(d, cfg, imagestore.NewStore(bucket, testBaseURL), resolver)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{srv: srv, db: d}
}

// creds authenticates a test request.
type creds func(r *http.Request)

func withCookie(c *http.Cookie) creds {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withKey(key string) creds {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+key) }
}

func (e *testEnv) do(t *testing.T, r *http.Request, as creds) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		as(r)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, r)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}, as creds) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rdr)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return e.do(t, r, as)
}

// signUp registers a user through the API and returns its session cookie
// and ID.
func (e *testEnv) signUp(t *testing.T, name, email string) (*http.Cookie, string) {
	t.Helper()
	w := e.doJSON(t, "POST", "/auth/signup", credentialsRequest{Name: name, Email: email, Password: "secret123"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d; body: %s", w.Code, w.Body.String())
	}
	var u auth.User
	decode(t, w, &u)
	return sessionCookie(t, w), u.ID
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "hm_session" {
			return c
		}
	}
	t.Fatal("expected session cookie")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v; body: %s", err, w.Body.String())
	}
}

type upload struct {
	name string
	data []byte
}

// listingForm builds a multipart body for create and update.
func listingForm(t *testing.T, fields map[string]string, remove []string, files ...upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, u := range remove {
		if err := mw.WriteField(removeField, u); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(imagesField, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"type":         "sale",
		"name":         "Cozy family home",
		"bedrooms":     "3",
		"bathrooms":    "2",
		"address":      "12 Elm St, Springfield",
		"regularPrice": "250000",
		"latitude":     "39.78",
		"longitude":    "-89.65",
	}
}

func images(names ...string) []upload {
	out := make([]upload, len(names))
	for i, n := range names {
		out[i] = upload{name: n, data: pngBytes}
	}
	return out
}

func (e *testEnv) sendForm(t *testing.T, method, path string, fields map[string]string, remove []string, files []upload, as creds) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := listingForm(t, fields, remove, files...)
	r := httptest.NewRequest(method, path, body)
	r.Header.Set("Content-Type", ct)
	return e.do(t, r, as)
}

// createListing creates a listing with the given images and returns the
// decoded response.
func (e *testEnv) createListing(t *testing.T, as creds, imageNames ...string) writeResponse {
	t.Helper()
	w := e.sendForm(t, "POST", "/api/listings", validFields(), nil, images(imageNames...), as)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp writeResponse
	decode(t, w, &resp)
	return resp
}

// imagePath turns a download URL into a request path on the test server.
func imagePath(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasPrefix(raw, testBaseURL) {
		t.Fatalf("url %q not on test server", raw)
	}
	return u.RequestURI()
}
