package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is populated once at
// startup from defaults, an optional YAML file, environment variables
// (ONTOMART_ prefix) and command-line flags, then passed explicitly to the
// components that need it. There is no package-level instance.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DatabaseConfig holds connection and pooling settings for the graph store.
// An explicit URL wins over the individual postgres fields.
type DatabaseConfig struct {
	URL             string         `mapstructure:"url" yaml:"url"`
	Postgres        PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	MaxConns        int32          `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns        int32          `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime time.Duration  `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration  `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
}

// ConnString returns the pgx connection string for this configuration.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	p := d.Postgres
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// UserHeader names the request header the trusted gateway uses to pass
	// the authenticated principal. Authentication itself happens upstream.
	UserHeader string `mapstructure:"user_header" yaml:"user_header"`
}

// FetchConfig tunes the ontology document fetcher.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryMax      int           `mapstructure:"retry_max" yaml:"retry_max"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	// MaxBodyBytes caps a downloaded document; 0 means unlimited.
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	TempDir      string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// IngestConfig tunes the triple ingestion pipeline.
type IngestConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	DefaultFormat    string        `mapstructure:"default_format" yaml:"default_format"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ontomart")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "") // Should be set via env var
	v.SetDefault("database.postgres.dbname", "ontomart")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.user_header", "X-User-Email")

	// -- Fetch --
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.retry_max", 3)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("fetch.temp_dir", "")

	// -- Ingest --
	v.SetDefault("ingest.batch_concurrency", 4)
	v.SetDefault("ingest.batch_timeout", "30s")
	v.SetDefault("ingest.default_format", "turtle")
}

// NewDefault creates a configuration populated with default values only.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a validated configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("database.postgres.password", "ONTOMART_DB_PASSWORD")
	v.BindEnv("database.url", "ONTOMART_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is a required configuration field")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be a positive integer")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns must be between 0 and database.max_conns")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be a positive duration")
	}
	if c.Fetch.RetryMax < 0 {
		return fmt.Errorf("fetch.retry_max must not be negative")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must not be negative")
	}
	if c.Ingest.BatchConcurrency <= 0 {
		return fmt.Errorf("ingest.batch_concurrency must be a positive integer")
	}
	if c.Ingest.BatchTimeout <= 0 {
		return fmt.Errorf("ingest.batch_timeout must be a positive duration")
	}
	return nil
}
