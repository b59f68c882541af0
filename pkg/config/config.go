// pkg/config/config.go
package config

import "time"

// PoolConfig holds the connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"maxIdleConns"    validate:"gte=0"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // e.g. "1h", "30m"
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
}

// DatabaseConfig holds the connection settings for the SQL database that
// stores resources and, by default, relationship pivot rows.
type DatabaseConfig struct {
	Dialect string     `mapstructure:"dialect" validate:"required"` // "mysql", "postgres", "sqlite3", "sqlserver"
	DSN     string     `mapstructure:"dsn"     validate:"required"`
	Pool    PoolConfig `mapstructure:"pool"`
}

// LoggingConfig holds the logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"     validate:"required"`
	BasePath        string        `mapstructure:"basePath" validate:"omitempty,startswith=/"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// RelationsConfig selects where relationship pivot rows live.
type RelationsConfig struct {
	Store           string `mapstructure:"store"           validate:"oneof=sql mongo memory"`
	MongoURI        string `mapstructure:"mongoURI"        validate:"required_if=Store mongo"`
	MongoDatabase   string `mapstructure:"mongoDatabase"   validate:"required_if=Store mongo"`
	MongoCollection string `mapstructure:"mongoCollection"`
}

// UserConfig maps a bearer token onto a principal and its ability grants.
type UserConfig struct {
	Name      string   `mapstructure:"name"  validate:"required"`
	Token     string   `mapstructure:"token" validate:"required"`
	Abilities []string `mapstructure:"abilities"`
}

// AuthConfig lists the known API users.
type AuthConfig struct {
	Users []UserConfig `mapstructure:"users" validate:"dive"`
}

// MigrationConfig holds the migration settings.
type MigrationConfig struct {
	Directory string `mapstructure:"directory"`
	TableName string `mapstructure:"tableName"`
}

// OptionConfig is one static choice of a multiselect field.
type OptionConfig struct {
	Label string `mapstructure:"label" validate:"required"`
	Value any    `mapstructure:"value"`
	Group string `mapstructure:"group"`
}

// DependentOptionsConfig is the option list a field offers while the field it
// depends on holds Value. It is a list entry rather than a map key because
// viper lowercases map keys.
type DependentOptionsConfig struct {
	Value   string         `mapstructure:"value"`
	Options []OptionConfig `mapstructure:"options" validate:"dive"`
}

// FieldConfig declares a multiselect field on a resource.
type FieldConfig struct {
	Name             string                   `mapstructure:"name"      validate:"required"`
	Attribute        string                   `mapstructure:"attribute"`
	Relationship     string                   `mapstructure:"relationship"` // target resource name; enables relationship mode
	Options          []OptionConfig           `mapstructure:"options"   validate:"dive"`
	SaveAsJSON       bool                     `mapstructure:"saveAsJSON"`
	SingleSelect     bool                     `mapstructure:"singleSelect"`
	Reorderable      bool                     `mapstructure:"reorderable"`
	GroupSelect      bool                     `mapstructure:"groupSelect"`
	GroupRelations   bool                     `mapstructure:"groupRelations"`
	DependsOn        string                   `mapstructure:"dependsOn" validate:"required_with=DependsOnOptions"`
	DependsOnOptions []DependentOptionsConfig `mapstructure:"dependsOnOptions" validate:"omitempty,dive"`
	Max              int                      `mapstructure:"max"          validate:"gte=0"`
	Placeholder      string                   `mapstructure:"placeholder"`
	OptionsLimit     int                      `mapstructure:"optionsLimit" validate:"gte=0"`
}

// RelationConfig declares a many-to-many pivot table.
type RelationConfig struct {
	Name       string `mapstructure:"name"       validate:"required"`
	Table      string `mapstructure:"table"      validate:"required"`
	ForeignKey string `mapstructure:"foreignKey" validate:"required"`
	RelatedKey string `mapstructure:"relatedKey" validate:"required"`
	SortColumn string `mapstructure:"sortColumn"`
}

// ResourceConfig declares an admin resource backed by a table.
type ResourceConfig struct {
	Key           string           `mapstructure:"key"   validate:"required"`
	Name          string           `mapstructure:"name"  validate:"required"`
	Model         string           `mapstructure:"model"`
	Table         string           `mapstructure:"table" validate:"required"`
	PrimaryKey    string           `mapstructure:"primaryKey"`
	TitleColumn   string           `mapstructure:"titleColumn"`
	GroupColumn   string           `mapstructure:"groupColumn"`
	DisplayColumn string           `mapstructure:"displayColumn"`
	Columns       []string         `mapstructure:"columns"`
	JSONColumns   []string         `mapstructure:"jsonColumns"`
	Relations     []RelationConfig `mapstructure:"relations" validate:"dive"`
	Fields        []FieldConfig    `mapstructure:"fields"    validate:"dive"`
}

// Config aggregates every configuration section.
type Config struct {
	Database  DatabaseConfig   `mapstructure:"database"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Server    ServerConfig     `mapstructure:"server"`
	Relations RelationsConfig  `mapstructure:"relations"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Migration MigrationConfig  `mapstructure:"migration"`
	Resources []ResourceConfig `mapstructure:"resources" validate:"dive"`
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			// Dialect and DSN must be provided by the user
			Pool: PoolConfig{
				MaxIdleConns:    5,
				MaxOpenConns:    10,
				ConnMaxLifetime: time.Hour * 1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			BasePath:        "/nova-vendor",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Relations: RelationsConfig{
			Store:           "sql",
			MongoCollection: "pivots",
		},
		Migration: MigrationConfig{
			Directory: "migrations",
			TableName: "schema_migrations",
		},
	}
}
