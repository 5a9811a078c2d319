package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evcraddock/house-market/internal/config"
)

func clearServeEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HM_DB", "HM_IMAGE_DIR", "HM_PORT", "HM_IMAGE_BACKEND", "HM_IMAGE_BUCKET", "HM_MONGO_URI", "HM_GEOCODE_API_KEY", "HM_GEOCODE_RPS"} {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatal(err)
		}
	}
}

func TestServeConfigFlagsOverride(t *testing.T) {
	clearServeEnv(t)
	dir := t.TempDir()
	t.Setenv("HM_DB", filepath.Join(dir, "env.db"))
	t.Setenv("HM_PORT", "7000")

	flagDB = filepath.Join(dir, "flag", "market.db")
	t.Cleanup(func() { flagDB = "" })

	if _, err := serveConfig(filepath.Join(dir, "missing.env"), 0); err == nil {
		t.Fatal("expected error for missing env file")
	}

	cfg, err := serveConfig("", 9090)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.DBPath != flagDB || cfg.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ImageDir != filepath.Join(dir, "flag", "images") {
		t.Errorf("image dir = %q, want next to flag db", cfg.ImageDir)
	}
}

func TestServeConfigKeepsExplicitImageDir(t *testing.T) {
	clearServeEnv(t)
	dir := t.TempDir()
	t.Setenv("HM_IMAGE_DIR", filepath.Join(dir, "pics"))

	flagDB = filepath.Join(dir, "market.db")
	t.Cleanup(func() { flagDB = "" })

	cfg, err := serveConfig("", 0)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.ImageDir != filepath.Join(dir, "pics") || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestOpenFileBucket(t *testing.T) {
	cfg := config.Server{ImageBackend: config.BackendFile, Bucket: "listings", ImageDir: filepath.Join(t.TempDir(), "images")}

	bucket, release, err := openBucket(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer release()

	if bucket.Name() != "listings" {
		t.Errorf("name = %q", bucket.Name())
	}
	if _, err := os.Stat(cfg.ImageDir); err != nil {
		t.Errorf("image dir not created: %v", err)
	}
}

func TestNewResolver(t *testing.T) {
	r, err := newResolver(config.Server{})
	if err != nil || r != nil {
		t.Errorf("no key: resolver = %v, err = %v", r, err)
	}

	r, err = newResolver(config.Server{GeocodeAPIKey: "k", GeocodeRPS: 5})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if !r.Enabled() {
		t.Error("expected resolver to be enabled")
	}
}
