package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type contextKey struct{}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// failureLimiter throttles failed API key attempts per client IP.
type failureLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newFailureLimiter(perMinute int) *failureLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &failureLimiter{perMin: perMinute, limiters: make(map[string]*rate.Limiter)}
}

func (fl *failureLimiter) get(ip string) *rate.Limiter {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	lim, ok := fl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(fl.perMin)), fl.perMin)
		fl.limiters[ip] = lim
	}
	return lim
}

// blocked reports whether ip has used up its failure allowance. IPs with
// no recorded failures are never tracked.
func (fl *failureLimiter) blocked(ip string) bool {
	fl.mu.Lock()
	lim, ok := fl.limiters[ip]
	fl.mu.Unlock()
	return ok && lim.Tokens() < 1
}

// pruneAt drops limiters that have refilled completely by now and returns
// how many were removed.
func (fl *failureLimiter) pruneAt(now time.Time) int {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	n := 0
	for ip, lim := range fl.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(fl.limiters, ip)
			n++
		}
	}
	return n
}

func (fl *failureLimiter) recordFailure(ip string) {
	fl.get(ip).Allow()
}

// Authenticator resolves the caller of a request from a session cookie or a
// Bearer API key.
type Authenticator struct {
	sessions *SessionStore
	apiKeys  *APIKeyStore
	failures *failureLimiter
}

// PruneFailures forgets client IPs whose failure allowance has fully
// recovered. It returns how many were dropped.
func (a *Authenticator) PruneFailures() int {
	return a.failures.pruneAt(time.Now())
}

// NewAuthenticator creates an authenticator. failuresPerMinute caps bad API
// key attempts per client IP.
func NewAuthenticator(sessions *SessionStore, apiKeys *APIKeyStore, failuresPerMinute int) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		apiKeys:  apiKeys,
		failures: newFailureLimiter(failuresPerMinute),
	}
}

// Identify attaches the caller's user ID to the request context when the
// request carries valid credentials. Anonymous requests pass through.
// A Bearer token that does not validate gets 401, and 429 once the client
// IP exceeds its failure allowance.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			ip := clientIP(r)
			if a.failures.blocked(ip) {
				writeAuthError(w, http.StatusTooManyRequests, "too many failed attempts")
				return
			}

			userID, err := a.apiKeys.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				slog.Error("validating api key", "err", err)
				writeAuthError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if userID == "" {
				a.failures.recordFailure(ip)
				writeAuthError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
			return
		}

		if userID, err := a.sessions.Validate(r); err == nil {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests that Identify did not authenticate.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}
