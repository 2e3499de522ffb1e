package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Quill"`
	Description string `yaml:"description" default:"Posts, written and rewritten"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path" default:"./quill.db"`
	Compression string `yaml:"compression" default:"zstd"`
}

// StorageConfig selects where featured images live. Credentials come from
// the environment, never from this file.
type StorageConfig struct {
	Backend    string        `yaml:"backend" default:"memory"`
	Bucket     string        `yaml:"bucket" default:"quill-images"`
	Region     string        `yaml:"region" default:"auto"`
	PreviewTTL time.Duration `yaml:"preview_ttl" default:"15m"`
}

type FeaturesConfig struct {
	Authentication AuthConfig   `yaml:"authentication"`
	Editor         EditorConfig `yaml:"editor"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

type EditorConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	MaxImageBytes int           `yaml:"max_image_bytes" default:"5242880"`
	SessionTTL    time.Duration `yaml:"session_ttl" default:"2h"`
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

// Validate rejects values no component knows how to serve.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "s3":
	default:
		return fmt.Errorf("%s: %q", ErrUnknownStorageBackend, c.Storage.Backend)
	}

	switch c.Database.Compression {
	case "zstd", "gzip", "none":
	default:
		return fmt.Errorf("%s: %q", ErrUnknownCompression, c.Database.Compression)
	}

	switch c.Features.Authentication.Type {
	case "ed25519", "clerk":
	default:
		return fmt.Errorf("%s: %q", ErrUnknownAuthType, c.Features.Authentication.Type)
	}

	if c.Features.Editor.MaxImageBytes <= 0 {
		return fmt.Errorf("%s: %d", ErrInvalidMaxImageBytes, c.Features.Editor.MaxImageBytes)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if d, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(d))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
