// pkg/config/load.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override, e.g.
// MULTISELECT_DATABASE_DSN for database.dsn.
const EnvPrefix = "MULTISELECT"

// LoadConfig loads configuration from files, environment variables, and defaults.
// configPath: optional path to a specific configuration file.
// If configPath is empty, searches for "multiselect.yaml" in standard locations.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig() // Start with defaults

	// 1. Set defaults in Viper. Keys without a default are registered with an
	// empty value so environment overrides can reach them.
	v.SetDefault("database.dialect", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.pool.maxIdleConns", cfg.Database.Pool.MaxIdleConns)
	v.SetDefault("database.pool.maxOpenConns", cfg.Database.Pool.MaxOpenConns)
	v.SetDefault("database.pool.connMaxLifetime", cfg.Database.Pool.ConnMaxLifetime)
	v.SetDefault("database.pool.connMaxIdleTime", cfg.Database.Pool.ConnMaxIdleTime)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.basePath", cfg.Server.BasePath)
	v.SetDefault("server.readTimeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("relations.store", cfg.Relations.Store)
	v.SetDefault("relations.mongoURI", "")
	v.SetDefault("relations.mongoDatabase", "")
	v.SetDefault("relations.mongoCollection", cfg.Relations.MongoCollection)
	v.SetDefault("migration.directory", cfg.Migration.Directory)
	v.SetDefault("migration.tableName", cfg.Migration.TableName)

	// 2. Configure reading from Environment Variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Configure reading from Configuration File
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("multiselect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.multiselect")
	}

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			return cfg, fmt.Errorf("error reading specified config file '%s': %w", configPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("error reading configuration file: %w", err)
		}
	}

	// 4. Unmarshal the configuration into the Config struct
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding configuration: %w", err)
	}

	// 5. Validate the configuration struct
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags and aggregates every failure
// into a single error.
func Validate(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("Field '%s' failed validation on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
