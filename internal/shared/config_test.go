package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./ytq.db" {
			t.Errorf("expected database path ./ytq.db, got %s", config.Database.Path)
		}

		if config.Upload.ChunkSize != 1024*1024 {
			t.Errorf("expected 1 MiB chunk size, got %d", config.Upload.ChunkSize)
		}

		if config.Upload.CategoryID != "22" {
			t.Errorf("expected category 22, got %s", config.Upload.CategoryID)
		}

		if config.Channels.Root != "channels" {
			t.Errorf("expected channels root 'channels', got %s", config.Channels.Root)
		}

		if config.OAuth.Host != "localhost" {
			t.Errorf("expected oauth host localhost, got %s", config.OAuth.Host)
		}

		if config.OAuth.IdleTimeout() != 0 {
			t.Errorf("expected no idle timeout by default, got %v", config.OAuth.IdleTimeout())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[channels]
root = "/srv/channels"

[oauth]
idle_timeout_seconds = 90

[upload]
chunk_size = 262144
timezone = "Asia/Jakarta"
jobs_per_minute = 2.5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Channels.Root != "/srv/channels" {
			t.Errorf("expected channels root /srv/channels, got %s", config.Channels.Root)
		}

		if config.Upload.ChunkSize != 262144 {
			t.Errorf("expected chunk size 262144, got %d", config.Upload.ChunkSize)
		}

		if config.Upload.JobsPerMinute != 2.5 {
			t.Errorf("expected 2.5 jobs per minute, got %v", config.Upload.JobsPerMinute)
		}

		if config.OAuth.IdleTimeout() != 90*time.Second {
			t.Errorf("expected 90s idle timeout, got %v", config.OAuth.IdleTimeout())
		}

		if config.Upload.CategoryID != "22" {
			t.Errorf("expected unset keys to keep defaults, got category %q", config.Upload.CategoryID)
		}

		loc, err := config.Upload.Location()
		if err != nil {
			t.Fatalf("failed to resolve location: %v", err)
		}
		if loc.String() != "Asia/Jakarta" {
			t.Errorf("expected Asia/Jakarta, got %s", loc)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[oauth\nhost = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Invalid Timezone", func(t *testing.T) {
		config := DefaultConfig()
		config.Upload.Timezone = "Mars/Olympus"
		if _, err := config.Upload.Location(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Log.Level = "debug"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", loaded.Log.Level)
		}
	})
}
