package sentimentgate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUploadTTL = 15 * time.Minute
	MaxUploadTTL     = time.Hour
	DefaultKeyPrefix = "uploads"
)

// Config is the top-level pipeline configuration.
type Config struct {
	Uploads  UploadConfig    `yaml:"uploads"`
	Accounts []AccountConfig `yaml:"accounts"`
}

// UploadConfig controls upload target issuance.
type UploadConfig struct {
	// AllowedTypes maps a lower-case extension (".mp4") to its content type.
	AllowedTypes map[string]string `yaml:"allowed_types"`
	TTL          time.Duration     `yaml:"ttl"`
	KeyPrefix    string            `yaml:"key_prefix"`
}

// AccountConfig seeds a quota record at startup.
type AccountConfig struct {
	ID          string `yaml:"id"`
	SecretKey   string `yaml:"secret_key"`
	MaxRequests int64  `yaml:"max_requests"`
}

// DefaultAllowedTypes are the video containers accepted out of the box.
func DefaultAllowedTypes() map[string]string {
	return map[string]string{
		".mp4": "video/mp4",
		".mov": "video/quicktime",
		".avi": "video/x-msvideo",
	}
}

// DefaultConfig returns a Config with all defaults applied and no accounts.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sentimentgate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("sentimentgate: parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Uploads.AllowedTypes) == 0 {
		c.Uploads.AllowedTypes = DefaultAllowedTypes()
	} else {
		normalized := make(map[string]string, len(c.Uploads.AllowedTypes))
		for ext, ct := range c.Uploads.AllowedTypes {
			normalized[NormalizeExtension(ext)] = ct
		}
		c.Uploads.AllowedTypes = normalized
	}
	if c.Uploads.TTL == 0 {
		c.Uploads.TTL = DefaultUploadTTL
	}
	if c.Uploads.KeyPrefix == "" {
		c.Uploads.KeyPrefix = DefaultKeyPrefix
	}
	c.Uploads.KeyPrefix = strings.Trim(c.Uploads.KeyPrefix, "/")
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Uploads.TTL <= 0 || c.Uploads.TTL > MaxUploadTTL {
		return fmt.Errorf("sentimentgate: config: uploads.ttl must be in (0, %s], got %s", MaxUploadTTL, c.Uploads.TTL)
	}
	for ext, ct := range c.Uploads.AllowedTypes {
		if ext == "." {
			return fmt.Errorf("sentimentgate: config: uploads.allowed_types: empty extension")
		}
		if ct == "" {
			return fmt.Errorf("sentimentgate: config: uploads.allowed_types[%s]: content type is required", ext)
		}
	}

	ids := make(map[string]bool, len(c.Accounts))
	keys := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("sentimentgate: config: accounts[%d]: id is required", i)
		}
		if strings.Contains(acc.ID, "/") {
			return fmt.Errorf("sentimentgate: config: accounts[%d] (%s): id must not contain '/'", i, acc.ID)
		}
		if ids[acc.ID] {
			return fmt.Errorf("sentimentgate: config: duplicate account id %q", acc.ID)
		}
		ids[acc.ID] = true

		if acc.SecretKey == "" {
			return fmt.Errorf("sentimentgate: config: accounts[%d] (%s): secret_key is required", i, acc.ID)
		}
		if keys[acc.SecretKey] {
			return fmt.Errorf("sentimentgate: config: accounts[%d] (%s): secret_key is not unique", i, acc.ID)
		}
		keys[acc.SecretKey] = true

		if acc.MaxRequests <= 0 {
			return fmt.Errorf("sentimentgate: config: accounts[%d] (%s): max_requests must be positive", i, acc.ID)
		}
	}

	return nil
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
