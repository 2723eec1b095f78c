package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing config file to fall back to defaults, got %v", err)
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Fatalf("expected default retention days 30, got %d", cfg.Storage.RetentionDays)
	}
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
storage:
  retention_days: 7
transport:
  base_url: "https://custom.example.com"
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.RetentionDays != 7 {
		t.Fatalf("expected retention_days overridden to 7, got %d", cfg.Storage.RetentionDays)
	}
	if cfg.Transport.BaseURL != "https://custom.example.com" {
		t.Fatalf("expected base_url overridden, got %s", cfg.Transport.BaseURL)
	}
	// fields not present in the YAML keep their defaults.
	if cfg.Capture.ThumbnailWidth != 320 {
		t.Fatalf("expected untouched default thumbnail width, got %d", cfg.Capture.ThumbnailWidth)
	}
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transport:\n  base_url: \"https://file.example.com\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EDGE_TRANSPORT_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.BaseURL != "https://env.example.com" {
		t.Fatalf("expected env override to win, got %s", cfg.Transport.BaseURL)
	}
}

func TestValidateRejectsInvalidPIILevel(t *testing.T) {
	cfg := defaults()
	cfg.Privacy.DefaultPIILevel = "extreme"
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for unknown PII level")
	}
}

func TestValidateRejectsSignedBundleRequiredWithoutKey(t *testing.T) {
	cfg := defaults()
	cfg.Policy.RequireSignedBundle = true
	cfg.Policy.PublicKeyB64 = ""
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error when signed bundle required without a public key")
	}
}

func TestValidateRejectsNonPositiveBatchMaxEvents(t *testing.T) {
	cfg := defaults()
	cfg.Transport.BatchMaxEvents = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected validation error for non-positive batch_max_events")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := defaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected defaults to validate cleanly, got %v", err)
	}
}
