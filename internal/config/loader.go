package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacentio/shelf/catalog/dynamo"
	"github.com/jacentio/shelf/store"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Load reads configuration from environment variables.
// Values in the given dotenv files are applied first without overriding the
// process environment; missing files are ignored.
func Load(dotenvFiles ...string) (*Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config load: read %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(dotenvFiles ...string) *Config {
	cfg, err := Load(dotenvFiles...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, set := os.LookupEnv(envName)
		if !set {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value, set = os.LookupEnv(alt)
			}
		}

		if !set || value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Backend {
	case BackendDynamoDB:
		if c.AWS.Region == "" {
			errs = append(errs, "SHELF_AWS_REGION is required for the dynamodb backend")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("SHELF_BACKEND (%q) must be one of: dynamodb, memory", c.Store.Backend))
	}
	if c.Store.Shards < 1 || c.Store.Shards > 256 {
		errs = append(errs, fmt.Sprintf("SHELF_REFERENCE_SHARDS (%d) must be 1-256", c.Store.Shards))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, "SHELF_TIMEOUT must be positive")
	}

	if c.Seed.Concurrency < 0 {
		errs = append(errs, "SHELF_SEED_CONCURRENCY must be non-negative")
	}
	if c.Seed.RatePerSecond < 0 {
		errs = append(errs, "SHELF_SEED_RATE must be non-negative")
	}
	if c.Seed.RatePerSecond > 0 && c.Seed.Burst <= 0 {
		errs = append(errs, "SHELF_SEED_BURST must be positive when SHELF_SEED_RATE is set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// DynamoConfig returns the table layout for the DynamoDB backend.
func (c *Config) DynamoConfig() dynamo.Config {
	return dynamo.Config{
		TablePrefix: c.Store.TablePrefix,
		Store: store.Config{
			RelationshipTable: c.Store.RelationshipTable,
			UniqueTable:       c.Store.UniqueTable,
			NumShards:         c.Store.Shards,
		},
	}
}

// String returns a string representation of the config for logging.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("AWS: {Region: %q, Profile: %q, Endpoint: %q}, ",
		c.AWS.Region, c.AWS.Profile, c.AWS.Endpoint))
	b.WriteString(fmt.Sprintf("Store: {Backend: %q, TablePrefix: %q, Shards: %d, Timeout: %s}, ",
		c.Store.Backend, c.Store.TablePrefix, c.Store.Shards, c.Store.Timeout))
	b.WriteString(fmt.Sprintf("Seed: {Concurrency: %d, Rate: %d, Burst: %d, Dataset: %q}, ",
		c.Seed.Concurrency, c.Seed.RatePerSecond, c.Seed.Burst, c.Seed.Dataset))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
