// Package config loads the daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/featuremesh/featurestore-go/constants"
	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	// Server configures the HTTP serving layer.
	Server ServerConfig `yaml:"server"`

	// OnlineStore configures the low-latency serving store.
	OnlineStore StoreConfig `yaml:"online_store"`

	// OfflineStore configures the historical store.
	OfflineStore StoreConfig `yaml:"offline_store"`

	// Checker configures the periodic consistency check.
	Checker CheckerConfig `yaml:"checker"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`

	// EntityTypes maps entity key columns to their value types.
	// Undeclared keys default to int64.
	EntityTypes map[string]string `yaml:"entity_types"`

	// FeatureViews are registered at startup, in order.
	FeatureViews []FeatureViewConfig `yaml:"feature_views"`
}

// ServerConfig configures the HTTP serving layer.
type ServerConfig struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`
}

// StoreConfig selects and connects a storage backend.
type StoreConfig struct {
	// Type is the datasource type: mysql, postgres, duckdb, redis, memory.
	Type string `yaml:"type"`

	// DSN is the driver connection string. For duckdb it is the database
	// file path; empty means in-memory. For redis it is the host:port
	// address.
	DSN string `yaml:"dsn"`

	// Password authenticates the redis connection. Ignored by SQL
	// backends, whose DSN carries credentials.
	Password string `yaml:"password"`

	// DB selects the redis logical database.
	DB int `yaml:"db"`
}

// CheckerConfig configures the periodic consistency check.
type CheckerConfig struct {
	// Enabled turns the periodic check loop on.
	Enabled bool `yaml:"enabled"`

	// Interval between check runs.
	Interval time.Duration `yaml:"interval"`

	// SampleSize is the per-view entity sample size.
	SampleSize int `yaml:"sample_size"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches from console to JSON output.
	JSON bool `yaml:"json"`
}

// FeatureViewConfig declares a feature view to register at startup.
type FeatureViewConfig struct {
	Name string `yaml:"name"`

	// Entities are the entity key columns; the first is the join key.
	Entities []string `yaml:"entities"`

	Features []FeatureConfig `yaml:"features"`

	// TTLSeconds is the declared freshness window of the view's features.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// FeatureConfig declares one feature column.
type FeatureConfig struct {
	Name string `yaml:"name"`

	// Dtype is the value type: int32, int64, float, double, string,
	// boolean, timestamp.
	Dtype string `yaml:"dtype"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
		},
		OnlineStore: StoreConfig{
			Type: constants.Datasource_Type_Memory,
		},
		OfflineStore: StoreConfig{
			Type: constants.Datasource_Type_DuckDB,
			DSN:  "featurestore.duckdb",
		},
		Checker: CheckerConfig{
			Enabled:    true,
			Interval:   5 * time.Minute,
			SampleSize: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

var onlineTypes = map[string]bool{
	constants.Datasource_Type_MySQL:    true,
	constants.Datasource_Type_Postgres: true,
	constants.Datasource_Type_DuckDB:   true,
	constants.Datasource_Type_Redis:    true,
	constants.Datasource_Type_Memory:   true,
}

var offlineTypes = map[string]bool{
	constants.Datasource_Type_DuckDB:   true,
	constants.Datasource_Type_Postgres: true,
	constants.Datasource_Type_Memory:   true,
}

// Validate rejects configurations that cannot boot.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if !onlineTypes[c.OnlineStore.Type] {
		return fmt.Errorf("unknown online_store.type:%s", c.OnlineStore.Type)
	}
	if !offlineTypes[c.OfflineStore.Type] {
		return fmt.Errorf("unknown offline_store.type:%s", c.OfflineStore.Type)
	}
	if c.Checker.Enabled {
		if c.Checker.Interval <= 0 {
			return fmt.Errorf("checker.interval must be positive")
		}
		if c.Checker.SampleSize <= 0 {
			return fmt.Errorf("checker.sample_size must be positive")
		}
	}

	for column, typeName := range c.EntityTypes {
		if _, ok := constants.FSTypeFromName(typeName); !ok {
			return fmt.Errorf("unknown entity type %s for column %s", typeName, column)
		}
	}

	for _, view := range c.FeatureViews {
		if view.Name == "" {
			return fmt.Errorf("feature view name is required")
		}
		if len(view.Entities) == 0 {
			return fmt.Errorf("feature view %s needs at least one entity", view.Name)
		}
		for _, f := range view.Features {
			if f.Name == "" {
				return fmt.Errorf("feature view %s has a feature without a name", view.Name)
			}
			if _, ok := constants.FSTypeFromName(f.Dtype); !ok {
				return fmt.Errorf("feature view %s feature %s has unknown dtype:%s", view.Name, f.Name, f.Dtype)
			}
		}
	}

	return nil
}

// ParsedEntityTypes converts the declared entity types to their enum values.
// Call only after Validate.
func (c *Config) ParsedEntityTypes() map[string]constants.FSType {
	if len(c.EntityTypes) == 0 {
		return nil
	}
	types := make(map[string]constants.FSType, len(c.EntityTypes))
	for column, typeName := range c.EntityTypes {
		t, _ := constants.FSTypeFromName(typeName)
		types[column] = t
	}
	return types
}
