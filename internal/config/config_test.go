package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)

	// This test mainly ensures the function doesn't panic
}

func TestApplyDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	if config.Site.Name != "Quill" {
		t.Errorf("Expected site name 'Quill', got %q", config.Site.Name)
	}
	if config.Server.Host != "0.0.0.0" || config.Server.Port != "12600" {
		t.Errorf("Expected 0.0.0.0:12600, got %s:%s", config.Server.Host, config.Server.Port)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got %q", config.Logging.Level)
	}
	if config.Database.Path != "./quill.db" || config.Database.Compression != "zstd" {
		t.Errorf("Unexpected database defaults: %+v", config.Database)
	}
	if config.Storage.Backend != "memory" {
		t.Errorf("Expected storage backend 'memory', got %q", config.Storage.Backend)
	}
	if config.Storage.PreviewTTL != 15*time.Minute {
		t.Errorf("Expected preview TTL 15m, got %v", config.Storage.PreviewTTL)
	}
	if !config.Features.Authentication.Enabled || config.Features.Authentication.Type != "ed25519" {
		t.Errorf("Unexpected auth defaults: %+v", config.Features.Authentication)
	}
	if config.Features.Editor.MaxImageBytes != 5<<20 {
		t.Errorf("Expected max image bytes %d, got %d", 5<<20, config.Features.Editor.MaxImageBytes)
	}
	if config.Features.Editor.SessionTTL != 2*time.Hour {
		t.Errorf("Expected session TTL 2h, got %v", config.Features.Editor.SessionTTL)
	}
}

func TestApplyDefaultsIgnoresNonStruct(t *testing.T) {
	s := "unchanged"
	applyDefaults(&s)
	if s != "unchanged" {
		t.Errorf("Expected string to be left alone, got %q", s)
	}
}

func TestApplyDefaultsSlice(t *testing.T) {
	type withSlice struct {
		Tags []string `default:"a, b ,c"`
	}
	v := &withSlice{}
	ApplyDefaults(v)

	if !reflect.DeepEqual(v.Tags, []string{"a", "b", "c"}) {
		t.Errorf("Expected [a b c], got %v", v.Tags)
	}
}

// TestConfigDefaultsGoldenFile tests that our defaults match the golden file
func TestConfigDefaultsGoldenFile(t *testing.T) {
	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var golden Config
	if err := yaml.Unmarshal(goldenData, &golden); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	defaults := Config{}
	ApplyDefaults(&defaults)

	if !reflect.DeepEqual(defaults, golden) {
		t.Errorf("Defaults drifted from golden file:\n got: %+v\nwant: %+v", defaults, golden)
	}
}

func TestLoadConfig(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	t.Run("Missing file uses defaults", func(t *testing.T) {
		if err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if AppConfig == nil || AppConfig.Site.Name != "Quill" {
			t.Errorf("Expected default config, got %+v", AppConfig)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: "8080"
storage:
  backend: s3
  bucket: covers
  preview_ttl: 1h
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write config content: %v", err)
		}

		if err := LoadConfig(path); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if AppConfig.Server.Port != "8080" {
			t.Errorf("Expected port 8080, got %q", AppConfig.Server.Port)
		}
		if AppConfig.Server.Host != "0.0.0.0" {
			t.Errorf("Expected default host to survive, got %q", AppConfig.Server.Host)
		}
		if AppConfig.Storage.Backend != "s3" || AppConfig.Storage.Bucket != "covers" {
			t.Errorf("Unexpected storage config: %+v", AppConfig.Storage)
		}
		if AppConfig.Storage.PreviewTTL != time.Hour {
			t.Errorf("Expected preview TTL 1h, got %v", AppConfig.Storage.PreviewTTL)
		}
	})

	t.Run("Malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		_ = os.WriteFile(path, []byte("server: [unclosed"), 0o644)

		if err := LoadConfig(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("Invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		_ = os.WriteFile(path, []byte("storage:\n  backend: ftp\n"), 0o644)

		err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), ErrUnknownStorageBackend) {
			t.Errorf("Expected %q error, got %v", ErrUnknownStorageBackend, err)
		}
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "Defaults", mutate: func(*Config) {}},
		{name: "Clerk auth", mutate: func(c *Config) { c.Features.Authentication.Type = "clerk" }},
		{name: "Unknown auth", mutate: func(c *Config) { c.Features.Authentication.Type = "oauth" }, errMsg: ErrUnknownAuthType},
		{name: "Unknown compression", mutate: func(c *Config) { c.Database.Compression = "lz4" }, errMsg: ErrUnknownCompression},
		{name: "Zero image size", mutate: func(c *Config) { c.Features.Editor.MaxImageBytes = 0 }, errMsg: ErrInvalidMaxImageBytes},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{}
			ApplyDefaults(c)
			tc.mutate(c)

			err := c.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}
