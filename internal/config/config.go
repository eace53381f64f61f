// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Graph() GraphConfig
	Metrics() MetricsConfig

	// Graph Setters
	SetGraphBackend(backend string)
	SetGraphQueryTimeout(d time.Duration)
}

// Config holds the entire application configuration. Sections are read
// through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	GraphCfg   GraphConfig   `mapstructure:"graph" yaml:"graph"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Graph() GraphConfig     { return c.GraphCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetGraphBackend(backend string)       { c.GraphCfg.Backend = backend }
func (c *Config) SetGraphQueryTimeout(d time.Duration) { c.GraphCfg.QueryTimeout = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// GraphConfig selects and tunes the graph storage backend.
type GraphConfig struct {
	// Backend is the registry key: "postgres", "neo4j" or "memory".
	Backend      string         `mapstructure:"backend" yaml:"backend"`
	QueryTimeout time.Duration  `mapstructure:"query_timeout" yaml:"query_timeout"`
	Retry        RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Postgres     PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Neo4j        Neo4jConfig    `mapstructure:"neo4j" yaml:"neo4j"`
}

// RetryConfig bounds the exponential backoff applied to connection failures.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
// URL, when set, takes precedence over the discrete fields.
type PostgresConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	Host             string        `mapstructure:"host" yaml:"host"`
	Port             int           `mapstructure:"port" yaml:"port"`
	User             string        `mapstructure:"user" yaml:"user"`
	Password         string        `mapstructure:"password" yaml:"password"`
	DBName           string        `mapstructure:"dbname" yaml:"dbname"`
	SSLMode          string        `mapstructure:"sslmode" yaml:"sslmode"`
	MaxConns         int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	AutoCreateSchema bool          `mapstructure:"auto_create_schema" yaml:"auto_create_schema"`
}

// ConnString renders the connection string handed to pgxpool.ParseConfig.
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else if p.User != "" {
		u.User = url.User(p.User)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{p.SSLMode}}.Encode()
	}
	return u.String()
}

// Neo4jConfig holds the connection details for a Neo4j database.
type Neo4jConfig struct {
	URI                          string        `mapstructure:"uri" yaml:"uri"`
	User                         string        `mapstructure:"user" yaml:"user"`
	Password                     string        `mapstructure:"password" yaml:"password"`
	Database                     string        `mapstructure:"database" yaml:"database"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size" yaml:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout" yaml:"connection_acquisition_timeout"`
	MaxConnectionLifetime        time.Duration `mapstructure:"max_connection_lifetime" yaml:"max_connection_lifetime"`
	AutoCreateSchema             bool          `mapstructure:"auto_create_schema" yaml:"auto_create_schema"`
}

// MetricsConfig controls the Prometheus exposition endpoint of the CLI.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-graph")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Graph --
	v.SetDefault("graph.backend", "postgres")
	v.SetDefault("graph.query_timeout", "30s")
	v.SetDefault("graph.retry.max_attempts", 3)
	v.SetDefault("graph.retry.initial_interval", "100ms")
	v.SetDefault("graph.retry.max_interval", "2s")

	v.SetDefault("graph.postgres.host", "localhost")
	v.SetDefault("graph.postgres.port", 5432)
	v.SetDefault("graph.postgres.user", "postgres")
	v.SetDefault("graph.postgres.password", "") // Should be set via env var
	v.SetDefault("graph.postgres.dbname", "scalpel_graph")
	v.SetDefault("graph.postgres.sslmode", "disable")
	v.SetDefault("graph.postgres.max_conns", 10)
	v.SetDefault("graph.postgres.min_conns", 2)
	v.SetDefault("graph.postgres.max_conn_lifetime", "1h")
	v.SetDefault("graph.postgres.max_conn_idle_time", "30m")
	v.SetDefault("graph.postgres.auto_create_schema", false)

	v.SetDefault("graph.neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("graph.neo4j.user", "neo4j")
	v.SetDefault("graph.neo4j.password", "") // Should be set via env var
	v.SetDefault("graph.neo4j.database", "neo4j")
	v.SetDefault("graph.neo4j.max_connection_pool_size", 50)
	v.SetDefault("graph.neo4j.connection_acquisition_timeout", "30s")
	v.SetDefault("graph.neo4j.max_connection_lifetime", "1h")
	v.SetDefault("graph.neo4j.auto_create_schema", false)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("graph.postgres.password", "SCALPEL_GRAPH_POSTGRES_PASSWORD")
	_ = v.BindEnv("graph.neo4j.password", "SCALPEL_GRAPH_NEO4J_PASSWORD")

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
	if err := c.GraphCfg.Validate(); err != nil {
		return fmt.Errorf("graph configuration invalid: %w", err)
	}
	if c.MetricsCfg.Enabled && c.MetricsCfg.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// Validate checks the graph section. Only the settings of the selected
// backend are inspected; the backend key itself is resolved by the factory.
func (g *GraphConfig) Validate() error {
	if strings.TrimSpace(g.Backend) == "" {
		return fmt.Errorf("backend must be set")
	}
	if g.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	if err := g.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	switch g.Backend {
	case "postgres":
		if err := g.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	case "neo4j":
		if err := g.Neo4j.Validate(); err != nil {
			return fmt.Errorf("neo4j: %w", err)
		}
	}
	return nil
}

// Validate checks the retry policy.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if r.InitialInterval <= 0 {
		return fmt.Errorf("initial_interval must be a positive duration")
	}
	if r.MaxInterval < r.InitialInterval {
		return fmt.Errorf("max_interval must not be shorter than initial_interval")
	}
	return nil
}

// Validate checks the PostgreSQL connection settings.
func (p *PostgresConfig) Validate() error {
	if p.URL == "" && (p.Host == "" || p.DBName == "") {
		return fmt.Errorf("either url or host and dbname are required")
	}
	if p.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be a positive integer")
	}
	if p.MinConns < 0 || p.MinConns > p.MaxConns {
		return fmt.Errorf("min_conns must be between 0 and max_conns")
	}
	return nil
}

// Validate checks the Neo4j connection settings.
func (n *Neo4jConfig) Validate() error {
	if n.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if n.MaxConnectionPoolSize <= 0 {
		return fmt.Errorf("max_connection_pool_size must be a positive integer")
	}
	return nil
}
