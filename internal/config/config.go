// Package config loads shelf configuration from environment variables with
// defaults, and validates it on startup.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	AWS     AWSConfig
	Store   StoreConfig
	Seed    SeedConfig
	Logging LoggingConfig
}

// AWSConfig holds AWS client settings.
type AWSConfig struct {
	// Region is the AWS region (default: us-east-1)
	Region string `env:"SHELF_AWS_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	// Profile is the shared config profile; empty uses the default chain
	Profile string `env:"SHELF_AWS_PROFILE" envAlt:"AWS_PROFILE"`

	// Endpoint overrides the DynamoDB endpoint, e.g. DynamoDB Local
	Endpoint string `env:"SHELF_DYNAMODB_ENDPOINT"`
}

// StoreConfig selects and configures the entity store.
type StoreConfig struct {
	// Backend is "dynamodb" or "memory" (default: dynamodb)
	Backend string `env:"SHELF_BACKEND" default:"dynamodb"`

	// TablePrefix is prepended to every table name (default: none)
	TablePrefix string `env:"SHELF_TABLE_PREFIX"`

	// RelationshipTable overrides the reference table name
	RelationshipTable string `env:"SHELF_RELATIONSHIP_TABLE"`

	// UniqueTable overrides the unique constraint table name
	UniqueTable string `env:"SHELF_UNIQUE_TABLE"`

	// Shards is the number of reference table shards per parent (default: 1)
	Shards int `env:"SHELF_REFERENCE_SHARDS" default:"1"`

	// Timeout bounds a single CLI operation (default: 30s)
	Timeout time.Duration `env:"SHELF_TIMEOUT" default:"30s"`
}

// SeedConfig holds seeder settings.
type SeedConfig struct {
	// Concurrency bounds in-flight creates per stage; 0 is unbounded (default: 8)
	Concurrency int `env:"SHELF_SEED_CONCURRENCY" default:"8"`

	// RatePerSecond throttles creates; 0 disables throttling (default: 0)
	RatePerSecond int `env:"SHELF_SEED_RATE" default:"0"`

	// Burst is the limiter burst when throttling (default: 1)
	Burst int `env:"SHELF_SEED_BURST" default:"1"`

	// Dataset is a YAML dataset path; empty uses the built-in sample
	Dataset string `env:"SHELF_SEED_DATASET"`

	// Preflight validates dataset references before writing (default: true)
	Preflight bool `env:"SHELF_SEED_PREFLIGHT" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
