package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Channels ChannelsConfig `toml:"channels"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Upload   UploadConfig   `toml:"upload"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// ChannelsConfig locates the per-channel credential folders.
type ChannelsConfig struct {
	Root string `toml:"root"`
}

// OAuthConfig contains loopback authorization settings.
type OAuthConfig struct {
	Host               string `toml:"host"`
	IdleTimeoutSeconds int    `toml:"idle_timeout_seconds"`
	OpenBrowser        bool   `toml:"open_browser"`
}

// IdleTimeout returns the listener idle timeout, zero meaning none.
func (o OAuthConfig) IdleTimeout() time.Duration {
	if o.IdleTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(o.IdleTimeoutSeconds) * time.Second
}

// UploadConfig contains upload transfer and queue settings.
type UploadConfig struct {
	ChunkSize     int     `toml:"chunk_size"`
	CategoryID    string  `toml:"category_id"`
	Language      string  `toml:"language"`
	Timezone      string  `toml:"timezone"`
	JobsPerMinute float64 `toml:"jobs_per_minute"`
	Endpoint      string  `toml:"endpoint"`
}

// Location resolves the configured schedule timezone.
func (u UploadConfig) Location() (*time.Location, error) {
	if u.Timezone == "" || u.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, u.Timezone, err)
	}
	return loc, nil
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
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
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
