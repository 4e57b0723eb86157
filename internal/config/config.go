// Package config loads SmartTask settings from .env, an optional YAML file and
// SMARTTASK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	App      AppConfig      `koanf:"app"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Storage  StorageConfig  `koanf:"storage"`
	Backend  BackendConfig  `koanf:"backend"`
	AI       AIConfig       `koanf:"ai"`
	Log      LogConfig      `koanf:"log"`
}

type AppConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	// BaseURL is where users open the app; the CLI shares it.
	BaseURL string `koanf:"base_url"`
}

type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// AuthRatePerMinute limits sign-in and sign-up attempts per client address.
	AuthRatePerMinute float64 `koanf:"auth_rate_per_minute"`
	// TrustProxyHeaders makes the limiter read the client address from proxy headers.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	JWTSecret  Secret   `koanf:"jwt_secret"`
	TokenTTL   Duration `koanf:"token_ttl"`
	BcryptCost int      `koanf:"bcrypt_cost"`
}

const (
	StorageDisk      = "disk"
	StorageJetStream = "jetstream"
)

type StorageConfig struct {
	Backend        string `koanf:"backend"`
	Dir            string `koanf:"dir"`
	NatsURL        string `koanf:"nats_url"`
	Bucket         string `koanf:"bucket"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
	PublicBaseURL  string `koanf:"public_base_url"`
}

// BackendConfig is what the CLI uses to reach the backend.
type BackendConfig struct {
	URL         string   `koanf:"url"`
	AnonKey     Secret   `koanf:"anon_key"`
	Bucket      string   `koanf:"bucket"`
	Timeout     Duration `koanf:"timeout"`
	SessionFile string   `koanf:"session_file"`
}

type AIConfig struct {
	APIKey        Secret   `koanf:"api_key"`
	Model         string   `koanf:"model"`
	BaseURL       string   `koanf:"base_url"`
	Timeout       Duration `koanf:"timeout"`
	RatePerMinute float64  `koanf:"rate_per_minute"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "SmartTask Flow"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:8080"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.AuthRatePerMinute == 0 {
		cfg.Server.AuthRatePerMinute = 30
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./smarttask.db"
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = Duration(time.Hour)
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageDisk
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./data/objects"
	}
	if cfg.Storage.NatsURL == "" {
		cfg.Storage.NatsURL = "nats://127.0.0.1:4222"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "task-images"
	}
	if cfg.Storage.MaxUploadBytes == 0 {
		cfg.Storage.MaxUploadBytes = 5 << 20
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://localhost:8080"
	}
	if cfg.Backend.Bucket == "" {
		cfg.Backend.Bucket = cfg.Storage.Bucket
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(10 * time.Second)
	}
	if cfg.Backend.SessionFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.Backend.SessionFile = filepath.Join(dir, "smarttask", "session.json")
		}
	}

	if cfg.AI.APIKey == "" {
		for _, key := range []string{"GEMINI_API_KEY", "API_KEY"} {
			if v := os.Getenv(key); v != "" {
				cfg.AI.APIKey = Secret(v)
				break
			}
		}
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.5-flash"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = Duration(30 * time.Second)
	}
	if cfg.AI.RatePerMinute == 0 {
		cfg.AI.RatePerMinute = 15
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks settings shared by the server and the CLI.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageDisk, StorageJetStream:
	default:
		return fmt.Errorf("invalid storage backend %q (want %s or %s)", c.Storage.Backend, StorageDisk, StorageJetStream)
	}
	if c.Storage.MaxUploadBytes < 0 {
		return errors.New("max upload bytes cannot be negative")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d (must be 4-31)", c.Auth.BcryptCost)
	}
	if c.AI.RatePerMinute < 0 {
		return errors.New("ai rate per minute cannot be negative")
	}
	if c.Server.AuthRatePerMinute < 0 {
		return errors.New("auth rate per minute cannot be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (want json or console)", c.Log.Format)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP backend needs.
func (c *Config) ValidateServer() error {
	if len(c.Auth.JWTSecret.Value()) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}
