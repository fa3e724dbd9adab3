package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override, e.g. CROSSPOST_API_TOKEN.
const EnvPrefix = "CROSSPOST_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API       APIConfig        `toml:"api"`
	Editor    EditorConfig     `toml:"editor"`
	Database  DatabaseConfig   `toml:"database"`
	Server    ServerConfig     `toml:"server"`
	Storage   StorageConfig    `toml:"storage"`
	Sync      SyncConfig       `toml:"sync"`
	Platforms []PlatformConfig `toml:"platforms"`
}

// APIConfig contains settings for the remote draft/publish/activity backend.
type APIConfig struct {
	BaseURL       string   `toml:"base_url"`
	Token         string   `toml:"token"`
	Timeout       Duration `toml:"timeout"`
	RateLimit     float64  `toml:"rate_limit"`
	ActivityLimit int      `toml:"activity_limit"`
}

// EditorConfig contains autosave and tag rules for editing sessions.
type EditorConfig struct {
	AutosaveDelay Duration `toml:"autosave_delay"`
	MaxTags       int      `toml:"max_tags"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the local backend.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig contains S3-compatible storage settings for cover images.
type StorageConfig struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicURL       string `toml:"public_url"`
}

// SyncConfig contains the cron schedule used by `activity watch`.
type SyncConfig struct {
	Schedule string `toml:"schedule"`
}

// PlatformConfig is one row of the platform table. Adding a platform is a config change.
type PlatformConfig struct {
	ID       string `toml:"id"`
	Label    string `toml:"label"`
	Endpoint string `toml:"endpoint"`
	FeedURL  string `toml:"feed_url"`
	Sync     bool   `toml:"sync"`
	Self     bool   `toml:"self"`
}

// Duration wraps [time.Duration] so it can be written as "1s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// envOverrides lists the settings that may be supplied through the environment (or a .env file).
type envOverrides struct {
	APIBaseURL        string        `env:"API_BASE_URL"`
	APIToken          string        `env:"API_TOKEN"`
	DBPath            string        `env:"DB_PATH"`
	S3AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket          string        `env:"S3_BUCKET"`
	AutosaveDelay     time.Duration `env:"AUTOSAVE_DELAY"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	// Explicit platform tables replace the defaults instead of being appended to them.
	config.Platforms = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Platforms) == 0 {
		config.Platforms = DefaultConfig().Platforms
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays CROSSPOST_* variables onto the config.
//
// environ may be nil, in which case the process environment is used.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if o.APIBaseURL != "" {
		c.API.BaseURL = o.APIBaseURL
	}
	if o.APIToken != "" {
		c.API.Token = o.APIToken
	}
	if o.DBPath != "" {
		c.Database.Path = o.DBPath
	}
	if o.S3AccessKeyID != "" {
		c.Storage.AccessKeyID = o.S3AccessKeyID
	}
	if o.S3SecretAccessKey != "" {
		c.Storage.SecretAccessKey = o.S3SecretAccessKey
	}
	if o.S3Bucket != "" {
		c.Storage.Bucket = o.S3Bucket
	}
	if o.AutosaveDelay > 0 {
		c.Editor.AutosaveDelay = Duration{o.AutosaveDelay}
	}
	return nil
}

// Validate checks the invariants the rest of the application relies on.
func (c *Config) Validate() error {
	if c.Editor.MaxTags < 0 {
		return fmt.Errorf("%w: editor.max_tags must not be negative", ErrInvalidConfig)
	}
	if c.Editor.AutosaveDelay.Duration < 0 {
		return fmt.Errorf("%w: editor.autosave_delay must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Platforms))
	selfCount := 0
	for _, p := range c.Platforms {
		if p.ID == "" {
			return fmt.Errorf("%w: platform without id", ErrInvalidConfig)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: platform %q declared twice", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
		if p.Self {
			selfCount++
		}
	}
	if selfCount > 1 {
		return fmt.Errorf("%w: only one platform may be marked self", ErrInvalidConfig)
	}
	return nil
}
