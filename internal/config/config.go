// Package config loads and validates the edge agent's configuration,
// following the teacher's Load → defaults → applyEnvOverrides →
// validate pipeline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the edge agent.
type Config struct {
	// Listen is kept only so config files from the original product
	// still parse; the edge agent has no dashboard listener of its own.
	Listen string `yaml:"listen"`

	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Transport TransportConfig `yaml:"transport"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Policy    PolicyConfig    `yaml:"policy"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CaptureConfig governs the Capture Trigger and Frame Processor.
type CaptureConfig struct {
	ThrottleMs      int64 `yaml:"throttle_ms"`
	ThumbnailWidth  int   `yaml:"thumbnail_width"`
	ThumbnailHeight int   `yaml:"thumbnail_height"`
	OcrEnabled      bool  `yaml:"ocr_enabled"`
}

// StorageConfig governs the Event/Frame/Audit Store.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	FramesDir     string `yaml:"frames_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// TransportConfig governs the Transport Core and Batch Uploader.
type TransportConfig struct {
	BaseURL              string `yaml:"base_url"`
	UseGRPC              bool   `yaml:"use_grpc"`
	GRPCFallbackPorts    []int  `yaml:"grpc_fallback_ports"`
	SSEMaxRetrySecs      int    `yaml:"sse_max_retry_secs"`
	BatchMaxEvents       int    `yaml:"batch_max_events"`
	BatchIntervalSecs    int    `yaml:"batch_interval_secs"`
	UseWebSocketFallback bool   `yaml:"use_websocket_fallback"`
}

// PrivacyConfig governs the PII Filter, Consent Ledger, and Privacy Gateway.
type PrivacyConfig struct {
	DefaultPIILevel string `yaml:"default_pii_level"` // "none", "standard", "strict"
	ConsentFilePath string `yaml:"consent_file_path"`
}

// PolicyConfig governs the Policy Client and signed bundle preflight.
type PolicyConfig struct {
	BundlePath          string        `yaml:"bundle_path"`
	SignaturePath       string        `yaml:"signature_path"`
	PublicKeyB64        string        `yaml:"public_key_b64"`
	RequireSignedBundle bool          `yaml:"require_signed_bundle"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

// SandboxConfig governs the Sandbox Adapter factory's default posture.
type SandboxConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DefaultProfile string `yaml:"default_profile"` // "permissive", "standard", "strict"
}

// RedisConfig holds optional distributed-backend connection settings.
// When Enabled, Consent Ledger grants and revocations are mirrored into
// Redis.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // "otlp", "stdout", or "none"
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Load reads and parses the configuration file, falling back to
// defaults when path doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path from trusted CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaults()
			cfg.applyEnvOverrides()
			if err := cfg.validate(); err != nil {
				return nil, fmt.Errorf("validating default config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with sensible default values.
func defaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			ThrottleMs:      2000,
			ThumbnailWidth:  320,
			ThumbnailHeight: 180,
			OcrEnabled:      true,
		},
		Storage: StorageConfig{
			DBPath:        "./data/agent.db",
			FramesDir:     "./data/frames",
			RetentionDays: 30,
		},
		Transport: TransportConfig{
			BaseURL:           "https://api.example.com",
			UseGRPC:           false,
			GRPCFallbackPorts: []int{50051, 50052},
			SSEMaxRetrySecs:   30,
			BatchMaxEvents:    50,
			BatchIntervalSecs: 60,
		},
		Privacy: PrivacyConfig{
			DefaultPIILevel: "standard",
			ConsentFilePath: "./data/consent.json",
		},
		Policy: PolicyConfig{
			BundlePath:          "./data/policy.json",
			SignaturePath:       "./data/policy.json.sig",
			RequireSignedBundle: false,
			CacheTTL:            5 * time.Minute,
		},
		Sandbox: SandboxConfig{
			Enabled:        true,
			DefaultProfile: "standard",
		},
		Redis: RedisConfig{
			KeyPrefix: "edge-agent:",
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "none",
			ServiceName: "oneshim-edge",
		},
	}
}

// applyEnvOverrides overrides config fields from EDGE_* environment
// variables, for deployment-time overrides without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EDGE_TRANSPORT_BASE_URL"); v != "" {
		c.Transport.BaseURL = v
	}
	if v := os.Getenv("EDGE_TRANSPORT_USE_GRPC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Transport.UseGRPC = b
		}
	}
	if v := os.Getenv("EDGE_TRANSPORT_USE_WEBSOCKET_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Transport.UseWebSocketFallback = b
		}
	}
	if v := os.Getenv("EDGE_STORAGE_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("EDGE_STORAGE_FRAMES_DIR"); v != "" {
		c.Storage.FramesDir = v
	}
	if v := os.Getenv("EDGE_STORAGE_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.RetentionDays = n
		}
	}
	if v := os.Getenv("EDGE_PRIVACY_DEFAULT_PII_LEVEL"); v != "" {
		c.Privacy.DefaultPIILevel = v
	}
	if v := os.Getenv("EDGE_POLICY_PUBLIC_KEY_B64"); v != "" {
		c.Policy.PublicKeyB64 = v
	}
	if v := os.Getenv("EDGE_POLICY_REQUIRE_SIGNED_BUNDLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Policy.RequireSignedBundle = b
		}
	}
	if v := os.Getenv("EDGE_SANDBOX_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sandbox.Enabled = b
		}
	}
	if v := os.Getenv("EDGE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("EDGE_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EDGE_TELEMETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = b
		}
	}
	if v := os.Getenv("EDGE_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
}

// validate rejects configurations that would fail in ways better
// caught at startup than deep inside a running goroutine.
func (c *Config) validate() error {
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be >= 0")
	}
	if c.Capture.ThumbnailWidth <= 0 || c.Capture.ThumbnailHeight <= 0 {
		return fmt.Errorf("capture.thumbnail_width and thumbnail_height must be positive")
	}
	switch c.Privacy.DefaultPIILevel {
	case "none", "standard", "strict":
	default:
		return fmt.Errorf("privacy.default_pii_level must be one of none, standard, strict")
	}
	switch c.Sandbox.DefaultProfile {
	case "permissive", "standard", "strict":
	default:
		return fmt.Errorf("sandbox.default_profile must be one of permissive, standard, strict")
	}
	if c.Policy.RequireSignedBundle && c.Policy.PublicKeyB64 == "" {
		return fmt.Errorf("policy.public_key_b64 is required when policy.require_signed_bundle is set")
	}
	if c.Transport.BatchMaxEvents <= 0 {
		return fmt.Errorf("transport.batch_max_events must be positive")
	}
	return nil
}
