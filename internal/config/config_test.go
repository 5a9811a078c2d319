package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var allKeys = []string{
	"HM_DB", "HM_PORT", "HM_IMAGE_BACKEND", "HM_IMAGE_BUCKET", "HM_IMAGE_DIR",
	"HM_MONGO_URI", "HM_MONGO_DATABASE", "HM_GEOCODE_API_KEY", "HM_GEOCODE_RPS",
	"HM_DEV_MODE", "HM_BASE_URL",
}

// clearEnv unsets every HM_ variable for the test. t.Setenv registers the
// restore; the unset matters because godotenv skips keys that exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HM_DB", "/tmp/hm/market.db")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.ImageBackend != BackendFile {
		t.Errorf("backend = %q, want file", cfg.ImageBackend)
	}
	if cfg.ImageDir != filepath.Join("/tmp/hm", "images") {
		t.Errorf("image dir = %q", cfg.ImageDir)
	}
	if cfg.GeocodeAPIKey != "" || cfg.GeocodeRPS != 10 {
		t.Errorf("geocode = %q/%v", cfg.GeocodeAPIKey, cfg.GeocodeRPS)
	}
	if cfg.Auth.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", cfg.Auth.BaseURL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HM_DB", "/data/market.db")
	t.Setenv("HM_PORT", "9090")
	t.Setenv("HM_IMAGE_BACKEND", "gridfs")
	t.Setenv("HM_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("HM_GEOCODE_API_KEY", "k")
	t.Setenv("HM_GEOCODE_RPS", "2.5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != 9090 || cfg.ImageBackend != BackendGridFS || cfg.GeocodeRPS != 2.5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.MongoDatabase != "house_market" {
		t.Errorf("mongo database = %q", cfg.MongoDatabase)
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"HM_PORT": "eighty"}, "HM_PORT"},
		{"port range", map[string]string{"HM_PORT": "70000"}, "invalid port"},
		{"unknown backend", map[string]string{"HM_IMAGE_BACKEND": "s3"}, "unknown image backend"},
		{"gridfs without uri", map[string]string{"HM_IMAGE_BACKEND": "gridfs"}, "HM_MONGO_URI"},
		{"bad rps", map[string]string{"HM_GEOCODE_RPS": "fast"}, "HM_GEOCODE_RPS"},
		{"negative rps", map[string]string{"HM_GEOCODE_RPS": "-1"}, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HM_DB", "/tmp/hm/market.db")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HM_PORT", "7000")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "HM_DB=/srv/market.db\nHM_PORT=9999\nHM_IMAGE_BUCKET=photos\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/srv/market.db" || cfg.Bucket != "photos" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Port != 7000 {
		t.Errorf("port = %d, want environment value 7000", cfg.Port)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}
