package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the global ~/.camlog/config.toml.
type Config struct {
	DefaultProfile string           `toml:"default_profile"`
	Remote         RemoteConfig     `toml:"remote"`
	Blob           BlobConfig       `toml:"blob"`
	Encryption     EncryptionConfig `toml:"encryption"`
	Capture        CaptureConfig    `toml:"capture"`
	Netwatch       NetwatchConfig   `toml:"netwatch"`
}

// RemoteConfig points at the collection endpoint. Both fields are required
// for uploads; without them the daemon runs local-only.
type RemoteConfig struct {
	Endpoint string        `toml:"endpoint"`
	APIKey   string        `toml:"api_key"`
	Timeout  time.Duration `toml:"timeout"`
}

// Configured reports whether uploads can be attempted at all.
func (r RemoteConfig) Configured() bool {
	return strings.TrimSpace(r.Endpoint) != "" && strings.TrimSpace(r.APIKey) != ""
}

// BlobConfig selects the photo store backend. Type decides which other
// fields are relevant.
type BlobConfig struct {
	Type string `toml:"type"` // "sqlite" (default), "filesystem", "memory" or "s3"

	// filesystem
	Dir string `toml:"dir,omitempty"`

	// s3
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"` // MinIO or other S3-compatible server
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// EncryptionConfig enables at-rest sealing of photo payloads.
type EncryptionConfig struct {
	Enabled bool   `toml:"enabled"`
	KeyPath string `toml:"key_path,omitempty"` // defaults to <profile>/photos.key
}

// CaptureConfig bounds photo payloads before they reach storage.
type CaptureConfig struct {
	TargetKB     int `toml:"target_kb"`
	MaxDimension int `toml:"max_dimension"`
}

// NetwatchConfig controls the connectivity check.
type NetwatchConfig struct {
	Interval time.Duration `toml:"interval"`
}

// env holds the overrides read from the environment (CAMLOG_*).
type env struct {
	Profile  string `envconfig:"PROFILE"`
	Endpoint string `envconfig:"ENDPOINT"`
	APIKey   string `envconfig:"API_KEY"`
	BlobType string `envconfig:"BLOB_TYPE"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DefaultProfile == "" {
		c.DefaultProfile = "main"
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 60 * time.Second
	}
	if c.Blob.Type == "" {
		c.Blob.Type = "sqlite"
	}
	if c.Capture.TargetKB <= 0 {
		c.Capture.TargetKB = 150
	}
	if c.Capture.MaxDimension <= 0 {
		c.Capture.MaxDimension = 1200
	}
	if c.Netwatch.Interval <= 0 {
		c.Netwatch.Interval = 15 * time.Second
	}
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Blob.Type {
	case "sqlite", "memory":
	case "filesystem":
		if c.Blob.Dir == "" {
			return errors.New("blob type filesystem requires dir")
		}
	case "s3":
		if c.Blob.S3Bucket == "" {
			return errors.New("blob type s3 requires s3_bucket")
		}
	default:
		return fmt.Errorf("unknown blob type %q", c.Blob.Type)
	}
	return nil
}

// Load reads config from the given path. Returns nil and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file does not exist. Environment overrides are applied on top.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays CAMLOG_* variables, loading a .env file from the working
// directory first if one exists.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	var e env
	if err := envconfig.Process("camlog", &e); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if e.Profile != "" {
		cfg.DefaultProfile = e.Profile
	}
	if e.Endpoint != "" {
		cfg.Remote.Endpoint = strings.TrimSpace(e.Endpoint)
	}
	if e.APIKey != "" {
		cfg.Remote.APIKey = strings.TrimSpace(e.APIKey)
	}
	if e.BlobType != "" {
		cfg.Blob.Type = e.BlobType
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
