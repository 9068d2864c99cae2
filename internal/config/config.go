// Package config loads the canvas builder configuration from a YAML or JSON
// file, a .env file and environment overrides, in that order of precedence
// (environment wins).
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvProvider  = "CANVAS_PROVIDER"
	EnvModel     = "CANVAS_MODEL"
	EnvAPIKey    = "GEMINI_API_KEY"
	EnvRedisAddr = "CANVAS_REDIS_ADDR"
	EnvLogLevel  = "CANVAS_LOG_LEVEL"
	EnvAddr      = "CANVAS_ADDR"

	// EnvEncryptionKey holds a base64 AES-256 key that seals stored sessions.
	EnvEncryptionKey = "CANVAS_ENCRYPTION_KEY"
)

// Provider kinds.
const (
	ProviderGemini   = "gemini"
	ProviderScripted = "scripted"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Scopes   []domain.Scope `yaml:"scopes" json:"scopes"`
}

// ProviderConfig configures the completion provider and its middleware.
type ProviderConfig struct {
	Kind      string        `yaml:"kind" json:"kind"`
	Model     string        `yaml:"model" json:"model"`
	APIKeyEnv string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	RPS       float64       `yaml:"rps" json:"rps"`
	Burst     int           `yaml:"burst" json:"burst"`
	Retries   int           `yaml:"retries" json:"retries"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// Replies are the canned answers of the scripted provider. With none, every
	// call fails and classification runs on the keyword fallback.
	Replies []string `yaml:"replies" json:"replies"`

	// APIKey is read from the APIKeyEnv variable, never from the file.
	APIKey string `yaml:"-" json:"-"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	Kind     string        `yaml:"kind" json:"kind"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl" json:"lock_ttl"`

	// RedactPII masks e-mail addresses and phone or card numbers in stored
	// history. PIIPatterns replaces the built-in patterns when set.
	RedactPII   bool     `yaml:"redact_pii" json:"redact_pii"`
	PIIPatterns []string `yaml:"pii_patterns" json:"pii_patterns"`

	// EncryptionKey is decoded from EnvEncryptionKey, never read from the file.
	EncryptionKey []byte `yaml:"-" json:"-"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Kind:      ProviderGemini,
			Model:     "gemini-2.0-flash",
			APIKeyEnv: EnvAPIKey,
			Timeout:   30 * time.Second,
			RPS:       5,
			Burst:     5,
			Retries:   3,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Store:  StoreConfig{Kind: StoreMemory, Addr: "localhost:6379", TTL: 24 * time.Hour, LockTTL: 30 * time.Second},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path (YAML unless it ends in .json) over the defaults and applies
// environment overrides. An empty path, or a missing file, leaves the defaults
// in place. A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvProvider)); v != "" {
		c.Provider.Kind = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		c.Provider.Model = v
	}
	keyEnv := c.Provider.APIKeyEnv
	if keyEnv == "" {
		keyEnv = EnvAPIKey
	}
	c.Provider.APIKey = strings.TrimSpace(getenv(keyEnv))
	if v := strings.TrimSpace(getenv(EnvRedisAddr)); v != "" {
		c.Store.Kind = StoreRedis
		c.Store.Addr = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvAddr)); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(getenv(EnvEncryptionKey)); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("%s is not valid base64: %w", EnvEncryptionKey, err)
		}
		c.Store.EncryptionKey = key
	}
	return nil
}

// Validate checks the provider and store kinds.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderGemini, ProviderScripted:
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Addr == "" {
			return errors.New("redis store requires an address")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if n := len(c.Store.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("%s must decode to 32 bytes, got %d", EnvEncryptionKey, n)
	}
	return nil
}
