package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionCreateAndValidate(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	store := NewSessionStore(d)

	w := httptest.NewRecorder()
	if err := store.Create(w, "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	c := sessionCookie(t, w)
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(c)

	userID, err := store.Validate(r)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != "u1" {
		t.Errorf("user id = %q, want %q", userID, "u1")
	}
}

func TestSessionCreateUnknownUser(t *testing.T) {
	store := NewSessionStore(testDB(t))

	if err := store.Create(httptest.NewRecorder(), "ghost"); err == nil {
		t.Fatal("expected foreign key error for unknown user")
	}
}

func TestSessionValidateNoCookie(t *testing.T) {
	store := NewSessionStore(testDB(t))

	r := httptest.NewRequest("GET", "/", nil)
	if _, err := store.Validate(r); err == nil {
		t.Fatal("expected error with no cookie")
	}
}

func TestSessionValidateInvalidCookie(t *testing.T) {
	store := NewSessionStore(testDB(t))

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "bogus-session-id"})

	if _, err := store.Validate(r); err == nil {
		t.Fatal("expected error for invalid session")
	}
}

func TestSessionExpired(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	store := NewSessionStore(d)

	if _, err := d.Exec(
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		hashSessionID("old"), "u1", time.Now().Add(-time.Hour),
	); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "old"})
	if _, err := store.Validate(r); err == nil {
		t.Fatal("expected error for expired session")
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected expired session to be removed, found %d", count)
	}
}

func TestSessionDestroy(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	store := NewSessionStore(d)

	w := httptest.NewRecorder()
	if err := store.Create(w, "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	c := sessionCookie(t, w)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(c)
	if err := store.Destroy(httptest.NewRecorder(), r); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.AddCookie(c)
	if _, err := store.Validate(r2); err == nil {
		t.Fatal("expected error after destroy")
	}
}

func TestSessionDestroyAllForUser(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	insertUser(t, d, "u2")
	store := NewSessionStore(d)

	w1 := httptest.NewRecorder()
	w2 := httptest.NewRecorder()
	w3 := httptest.NewRecorder()
	for _, c := range []struct {
		w  *httptest.ResponseRecorder
		id string
	}{{w1, "u1"}, {w2, "u1"}, {w3, "u2"}} {
		if err := store.Create(c.w, c.id); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := store.DestroyAllForUser("u1"); err != nil {
		t.Fatalf("destroy all: %v", err)
	}

	for i, w := range []*httptest.ResponseRecorder{w1, w2} {
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(sessionCookie(t, w))
		if _, err := store.Validate(r); err == nil {
			t.Errorf("session %d of u1 should be gone", i)
		}
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(sessionCookie(t, w3))
	if _, err := store.Validate(r); err != nil {
		t.Errorf("session of u2 should survive: %v", err)
	}
}

func TestSessionStoresHashedID(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	store := NewSessionStore(d, WithSecureCookies())

	w := httptest.NewRecorder()
	if err := store.Create(w, "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	c := sessionCookie(t, w)
	if !c.Secure {
		t.Error("expected Secure cookie")
	}

	var stored string
	if err := d.QueryRow("SELECT id FROM sessions").Scan(&stored); err != nil {
		t.Fatalf("query: %v", err)
	}
	if stored == c.Value || stored != hashSessionID(c.Value) {
		t.Errorf("stored id = %q, want hash of cookie", stored)
	}
}

func TestSessionCleanup(t *testing.T) {
	d := testDB(t)
	insertUser(t, d, "u1")
	store := NewSessionStore(d)

	if err := store.Create(httptest.NewRecorder(), "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := d.Exec(
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		hashSessionID("stale"), "u1", time.Now().Add(-time.Hour),
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := store.Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d sessions, want 1", n)
	}
}
