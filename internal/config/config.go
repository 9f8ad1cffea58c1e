// Package config loads schemamap settings from a YAML file, SCHEMAMAP_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"schemamap/internal/ddl"
	"schemamap/internal/engine"
	"schemamap/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. SCHEMAMAP_STORE_DSN.
const EnvPrefix = "SCHEMAMAP"

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Mapping MappingConfig `mapstructure:"mapping"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type StoreConfig struct {
	Dialect string `mapstructure:"dialect" validate:"required,oneof=sqlite postgres mysql"`
	DSN     string `mapstructure:"dsn" validate:"required"`
}

type MappingConfig struct {
	// LinkTableWithoutNavigation maps relationships that have no navigation
	// property to link tables instead of foreign keys.
	LinkTableWithoutNavigation bool `mapstructure:"link_table_without_navigation"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	OutputPath string `mapstructure:"output_path"`
}

type MetricsConfig struct {
	// TextfilePath receives the import metrics in the node exporter textfile format.
	TextfilePath string `mapstructure:"textfile_path"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("store.dialect", ddl.NameSQLite)
	v.SetDefault("store.dsn", "schemamap.db")
	v.SetDefault("mapping.link_table_without_navigation", false)
	v.SetDefault("logging.level", string(logging.LevelInfo))
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output_path", "")
	v.SetDefault("metrics.textfile_path", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads path, or schemamap.yaml from the working directory when path is
// empty, and validates the merged result. A missing default file is not an
// error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("schemamap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and that the DSN parses for MySQL.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(validateStore, StoreConfig{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func validateStore(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)

	if s.Dialect == ddl.NameMySQL && s.DSN != "" {
		if _, err := mysql.ParseDSN(s.DSN); err != nil {
			sl.ReportError(s.DSN, "DSN", "dsn", "mysql_dsn", "")
		}
	}
}

// LoggerConfig converts the logging section for logging.Init.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      logging.Level(c.Logging.Level),
		Format:     c.Logging.Format,
		OutputPath: c.Logging.OutputPath,
	}
}

// EngineOptions converts the mapping section for the engine.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{LinkTableWithoutNavigation: c.Mapping.LinkTableWithoutNavigation}
}
