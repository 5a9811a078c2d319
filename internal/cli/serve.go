package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-market/internal/config"
	"github.com/evcraddock/house-market/internal/db"
	"github.com/evcraddock/house-market/internal/geocode"
	"github.com/evcraddock/house-market/internal/imagestore"
	"github.com/evcraddock/house-market/internal/logging"
	"github.com/evcraddock/house-market/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the house-market HTTP API.

Settings come from HM_ environment variables, optionally loaded from a .env
file. Flags override the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serveConfig(envFile, port)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: $HM_PORT or 8080)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "load settings from this file (default: ./.env if present)")

	return cmd
}

// serveConfig loads the server config and applies flag overrides.
func serveConfig(envFile string, port int) (config.Server, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Server{}, err
	}
	if flagDB != "" {
		if cfg.ImageDir == filepath.Join(filepath.Dir(cfg.DBPath), "images") {
			cfg.ImageDir = filepath.Join(filepath.Dir(flagDB), "images")
		}
		cfg.DBPath = flagDB
	}
	if port != 0 {
		cfg.Port = port
	}
	return cfg, cfg.Validate()
}

func runServe(cfg config.Server) error {
	logging.Setup(cfg.Auth.DevMode)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)

	bucket, closeBucket, err := openBucket(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeBucket()

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	srv, err := web.NewServer(database, cfg.Auth, imagestore.NewStore(bucket, cfg.Auth.BaseURL), resolver)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting house-market on http://localhost:%d\n", cfg.Port)
	return srv.ListenAndServe(ctx, cfg.Port)
}

// openBucket opens the configured image backend. The returned func releases
// it.
func openBucket(ctx context.Context, cfg config.Server) (imagestore.Bucket, func(), error) {
	switch cfg.ImageBackend {
	case config.BackendGridFS:
		bucket, disconnect, err := imagestore.ConnectGridFS(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Bucket)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("image storage", "backend", cfg.ImageBackend, "database", cfg.MongoDatabase, "bucket", cfg.Bucket)
		return bucket, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := disconnect(ctx); err != nil {
				slog.Warn("disconnecting from mongo", "err", err)
			}
		}, nil
	default:
		bucket, err := imagestore.NewFileBucket(cfg.Bucket, cfg.ImageDir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("image storage", "backend", cfg.ImageBackend, "dir", cfg.ImageDir, "bucket", cfg.Bucket)
		return bucket, func() {}, nil
	}
}

// newResolver returns a geocoding resolver, or nil when no API key is
// configured and manual coordinates are used as given.
func newResolver(cfg config.Server) (*geocode.Resolver, error) {
	if cfg.GeocodeAPIKey == "" {
		slog.Info("geocoding disabled, using manual coordinates")
		return nil, nil
	}
	c, err := geocode.NewClient(cfg.GeocodeAPIKey, cfg.GeocodeRPS)
	if err != nil {
		return nil, err
	}
	return geocode.NewResolver(c), nil
}
