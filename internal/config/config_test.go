// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "scalpel-graph", cfg.Logger().ServiceName)
	assert.Equal(t, "postgres", cfg.Graph().Backend)
	assert.Equal(t, 30*time.Second, cfg.Graph().QueryTimeout)
	assert.Equal(t, 3, cfg.Graph().Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Graph().Retry.InitialInterval)
	assert.Equal(t, int32(10), cfg.Graph().Postgres.MaxConns)
	assert.Equal(t, int32(2), cfg.Graph().Postgres.MinConns)
	assert.Equal(t, time.Hour, cfg.Graph().Postgres.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Graph().Postgres.MaxConnIdleTime)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Graph().Neo4j.URI)
	assert.Equal(t, 50, cfg.Graph().Neo4j.MaxConnectionPoolSize)
	assert.False(t, cfg.Metrics().Enabled)
	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetGraphBackend("memory")
	cfg.SetGraphQueryTimeout(5 * time.Second)

	assert.Equal(t, "memory", cfg.Graph().Backend)
	assert.Equal(t, 5*time.Second, cfg.Graph().QueryTimeout)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		cfgNoBackend := *cfg
		cfgNoBackend.GraphCfg.Backend = "  "
		err := cfgNoBackend.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "backend must be set")

		cfgNegTimeout := *cfg
		cfgNegTimeout.GraphCfg.QueryTimeout = -time.Second
		err = cfgNegTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "query_timeout must not be negative")

		cfgMetrics := *cfg
		cfgMetrics.MetricsCfg = MetricsConfig{Enabled: true}
		err = cfgMetrics.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "metrics.addr is required")
	})

	t.Run("Unknown backend keys are left to the factory", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.GraphCfg.Backend = "cassandra"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Retry Validation", func(t *testing.T) {
		valid := RetryConfig{MaxAttempts: 3, InitialInterval: 10 * time.Millisecond, MaxInterval: time.Second}
		assert.NoError(t, valid.Validate())

		noAttempts := valid
		noAttempts.MaxAttempts = 0
		err := noAttempts.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_attempts must be greater than 0")

		inverted := valid
		inverted.MaxInterval = time.Millisecond
		err = inverted.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_interval must not be shorter than initial_interval")
	})

	t.Run("Postgres Validation", func(t *testing.T) {
		valid := PostgresConfig{Host: "localhost", DBName: "graph", MaxConns: 4, MinConns: 1}
		assert.NoError(t, valid.Validate())

		urlOnly := PostgresConfig{URL: "postgres://u@h/db", MaxConns: 4}
		assert.NoError(t, urlOnly.Validate())

		missingHost := valid
		missingHost.Host = ""
		err := missingHost.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "either url or host and dbname are required")

		badMin := valid
		badMin.MinConns = 5
		err = badMin.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "min_conns must be between 0 and max_conns")
	})

	t.Run("Neo4j Validation is only applied to the selected backend", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.GraphCfg.Neo4j.URI = ""
		assert.NoError(t, cfg.Validate())

		cfg.GraphCfg.Backend = "neo4j"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "neo4j: uri is required")
	})
}

func TestPostgresConnString(t *testing.T) {
	t.Run("should prefer the explicit URL", func(t *testing.T) {
		p := PostgresConfig{URL: "postgres://a:b@c/d", Host: "ignored"}
		assert.Equal(t, "postgres://a:b@c/d", p.ConnString())
	})

	t.Run("should assemble discrete fields with escaping", func(t *testing.T) {
		p := PostgresConfig{Host: "db", Port: 5433, User: "graph", Password: "p@ss word", DBName: "kg", SSLMode: "require"}
		assert.Equal(t, "postgres://graph:p%40ss%20word@db:5433/kg?sslmode=require", p.ConnString())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
graph:
  backend: neo4j
  query_timeout: 5s
  neo4j:
    uri: "bolt://graph:7687"
    max_connection_pool_size: 8
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "neo4j", cfg.Graph().Backend)
		assert.Equal(t, 5*time.Second, cfg.Graph().QueryTimeout)
		assert.Equal(t, "bolt://graph:7687", cfg.Graph().Neo4j.URI)
		assert.Equal(t, 8, cfg.Graph().Neo4j.MaxConnectionPoolSize)
		// Check a default value was also loaded
		assert.Equal(t, "neo4j", cfg.Graph().Neo4j.User)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("graph.retry.max_attempts", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_attempts must be greater than 0")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		yamlConfig := []byte(`
graph:
  postgres:
    password: "from-file"
`)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		t.Setenv("SCALPEL_GRAPH_POSTGRES_PASSWORD", "pg-secret")
		t.Setenv("SCALPEL_GRAPH_NEO4J_PASSWORD", "neo-secret")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		// The environment overrides the config file.
		assert.Equal(t, "pg-secret", cfg.Graph().Postgres.Password)
		assert.Equal(t, "neo-secret", cfg.Graph().Neo4j.Password)
	})
}
