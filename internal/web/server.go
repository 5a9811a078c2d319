// Package web provides the HTTP API for house-market.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/geocode"
	"github.com/evcraddock/house-market/internal/imagestore"
	"github.com/evcraddock/house-market/internal/listing"
	"github.com/evcraddock/house-market/internal/logging"
)

// Server is the house-market HTTP server.
type Server struct {
	listings *listing.Repository
	service  *listing.Service
	images   *imagestore.Store

	users    *auth.UserStore
	sessions *auth.SessionStore
	apiKeys  *auth.APIKeyStore
	resets   *auth.ResetTokenStore
	mailer   *auth.Mailer
	provider *auth.ProviderVerifier
	authn    *auth.Authenticator
	authCfg  auth.Config

	handler http.Handler
}

// NewServer creates a server backed by db. images stores listing photos and
// resolver geocodes addresses; a nil resolver means manual coordinates.
func NewServer(db *sql.DB, cfg auth.Config, images *imagestore.Store, resolver *geocode.Resolver, opts ...listing.Option) (*Server, error) {
	if resolver == nil {
		resolver = geocode.NewResolver(nil)
	}

	provider, err := auth.NewProviderVerifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider verifier: %w", err)
	}

	repo := listing.NewRepository(db)
	var sessionOpts []auth.SessionOption
	if strings.HasPrefix(cfg.BaseURL, "https://") {
		sessionOpts = append(sessionOpts, auth.WithSecureCookies())
	}
	sessions := auth.NewSessionStore(db, sessionOpts...)
	apiKeys := auth.NewAPIKeyStore(db)

	s := &Server{
		listings: repo,
		service:  listing.NewService(repo, resolver, images, opts...),
		images:   images,
		users:    auth.NewUserStore(db),
		sessions: sessions,
		apiKeys:  apiKeys,
		resets:   auth.NewResetTokenStore(db),
		mailer:   auth.NewMailer(cfg),
		provider: provider,
		authn:    auth.NewAuthenticator(sessions, apiKeys, cfg.APIKeyFailuresPerMinute),
		authCfg:  cfg,
	}

	passkeys, err := newPasskeyHandlers(cfg, auth.NewPasskeyStore(db), sessions, s.users)
	if err != nil {
		return nil, fmt.Errorf("creating passkey handlers: %w", err)
	}

	mux := http.NewServeMux()
	s.routes(mux, passkeys)
	s.handler = logging.RequestLogger(s.authn.Identify(mux))

	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, pk *passkeyHandlers) {
	protected := func(h http.HandlerFunc) http.Handler { return auth.RequireUser(h) }

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v0/b/{bucket}/o/{object}", s.handleImage)

	// Listings
	mux.HandleFunc("GET /api/listings", s.handleListListings)
	mux.HandleFunc("GET /api/listings/recent", s.handleRecentListings)
	mux.HandleFunc("GET /api/listings/{id}", s.handleGetListing)
	mux.HandleFunc("GET /api/listings/{id}/landlord", s.handleLandlord)
	mux.Handle("POST /api/listings", protected(s.handleCreateListing))
	mux.Handle("PUT /api/listings/{id}", protected(s.handleUpdateListing))
	mux.Handle("DELETE /api/listings/{id}", protected(s.handleDeleteListing))
	mux.Handle("POST /api/listings/{id}/contact", protected(s.handleContactLandlord))

	// Accounts
	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /auth/provider", s.handleProviderSignIn)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /cli/auth/token", s.handleCLIToken)

	// Passkeys
	mux.HandleFunc("POST /passkey/login/begin", pk.handleBeginLogin)
	mux.HandleFunc("POST /passkey/login/finish", pk.handleFinishLogin)
	mux.Handle("POST /passkey/register/begin", protected(pk.handleBeginRegistration))
	mux.Handle("POST /passkey/register/finish", protected(pk.handleFinishRegistration))
	mux.Handle("GET /api/passkeys", protected(pk.handleListPasskeys))
	mux.Handle("DELETE /api/passkeys/{id}", protected(pk.handleDeletePasskey))

	// Profile and API keys
	mux.Handle("GET /api/profile", protected(s.handleGetProfile))
	mux.Handle("PUT /api/profile", protected(s.handleUpdateProfile))
	mux.Handle("GET /api/profile/listings", protected(s.handleProfileListings))
	mux.Handle("GET /api/keys", protected(s.handleListKeys))
	mux.Handle("POST /api/keys", protected(s.handleCreateKey))
	mux.Handle("DELETE /api/keys/{id}", protected(s.handleDeleteKey))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is canceled, then shuts down
// gracefully. Expired sessions and reset tokens are swept while it runs.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx, time.Hour)

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "base_url", s.authCfg.BaseURL)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweep removes expired sessions and spent reset tokens every interval
// until ctx is canceled.
func (s *Server) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		s.sweepOnce()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sweepOnce() {
	if n, err := s.sessions.Cleanup(); err != nil {
		slog.Warn("sweeping sessions", "err", err)
	} else if n > 0 {
		slog.Info("swept sessions", "count", n)
	}
	if n, err := s.resets.Cleanup(); err != nil {
		slog.Warn("sweeping reset tokens", "err", err)
	} else if n > 0 {
		slog.Info("swept reset tokens", "count", n)
	}
	if n := s.authn.PruneFailures(); n > 0 {
		slog.Info("pruned api key failure limiters", "count", n)
	}
}

// currentUser returns the authenticated user ID. Routes wrapped with
// auth.RequireUser always have one.
func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
