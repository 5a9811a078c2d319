// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/evcraddock/house-market/internal/auth"
	"github.com/evcraddock/house-market/internal/db"
)

// Image backends.
const (
	BackendFile   = "file"
	BackendGridFS = "gridfs"
)

// Server holds everything `hm serve` needs.
type Server struct {
	Port   int
	DBPath string

	ImageBackend  string
	Bucket        string
	ImageDir      string
	MongoURI      string
	MongoDatabase string

	// GeocodeAPIKey enables address resolution; empty means manual
	// coordinates are used as given.
	GeocodeAPIKey string
	GeocodeRPS    float64

	Auth auth.Config
}

// Load reads envFile (or ./.env when envFile is empty and it exists) into
// the process environment, then builds the config. Variables already set
// in the environment win over the file.
func Load(envFile string) (Server, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Server{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("loading .env: %w", err)
	}

	return FromEnv()
}

// FromEnv builds the config from HM_ environment variables.
func FromEnv() (Server, error) {
	dbPath := os.Getenv("HM_DB")
	if dbPath == "" {
		p, err := db.DefaultPath()
		if err != nil {
			return Server{}, err
		}
		dbPath = p
	}

	imageDir := os.Getenv("HM_IMAGE_DIR")
	if imageDir == "" {
		imageDir = filepath.Join(filepath.Dir(dbPath), "images")
	}

	port, err := envInt("HM_PORT", 8080)
	if err != nil {
		return Server{}, err
	}

	rps := 10.0
	if v := os.Getenv("HM_GEOCODE_RPS"); v != "" {
		rps, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Server{}, fmt.Errorf("parsing HM_GEOCODE_RPS: %w", err)
		}
	}

	cfg := Server{
		Port:          port,
		DBPath:        dbPath,
		ImageBackend:  envOr("HM_IMAGE_BACKEND", BackendFile),
		Bucket:        envOr("HM_IMAGE_BUCKET", "house-market"),
		ImageDir:      imageDir,
		MongoURI:      os.Getenv("HM_MONGO_URI"),
		MongoDatabase: envOr("HM_MONGO_DATABASE", "house_market"),
		GeocodeAPIKey: os.Getenv("HM_GEOCODE_API_KEY"),
		GeocodeRPS:    rps,
		Auth:          auth.ConfigFromEnv(),
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Bucket == "" {
		return fmt.Errorf("image bucket name is required")
	}
	switch c.ImageBackend {
	case BackendFile:
		if c.ImageDir == "" {
			return fmt.Errorf("HM_IMAGE_DIR is required for the file image backend")
		}
	case BackendGridFS:
		if c.MongoURI == "" {
			return fmt.Errorf("HM_MONGO_URI is required for the gridfs image backend")
		}
	default:
		return fmt.Errorf("unknown image backend %q (want %s or %s)", c.ImageBackend, BackendFile, BackendGridFS)
	}
	if c.GeocodeRPS < 0 {
		return fmt.Errorf("HM_GEOCODE_RPS must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
