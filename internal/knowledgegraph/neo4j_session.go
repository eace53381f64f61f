package knowledgegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
)

// neo4jConstraintViolation is reported when a uniqueness constraint rejects a write.
const neo4jConstraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// cypherRunner executes one statement inside a managed transaction and
// returns every record as a column map.
type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// graphDriver abstracts neo4j.DriverWithContext to allow for fakes in tests.
// work may be invoked more than once when the driver retries a transient failure.
type graphDriver interface {
	ExecuteRead(ctx context.Context, work func(tx cypherRunner) error) error
	ExecuteWrite(ctx context.Context, work func(tx cypherRunner) error) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// neo4jDriver adapts the official driver to graphDriver.
type neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

func newNeo4jDriver(cfg config.Neo4jConfig) (*neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4jconfig.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
		}
		if cfg.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &neo4jDriver{driver: driver, database: cfg.Database}, nil
}

func (d *neo4jDriver) ExecuteRead(ctx context.Context, work func(tx cypherRunner) error) error {
	return d.execute(ctx, neo4j.AccessModeRead, work)
}

func (d *neo4jDriver) ExecuteWrite(ctx context.Context, work func(tx cypherRunner) error) error {
	return d.execute(ctx, neo4j.AccessModeWrite, work)
}

func (d *neo4jDriver) execute(ctx context.Context, mode neo4j.AccessMode, work func(tx cypherRunner) error) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database, AccessMode: mode})
	defer session.Close(ctx)

	started := false
	txWork := func(tx neo4j.ManagedTransaction) (any, error) {
		started = true
		return nil, work(managedTx{tx: tx})
	}

	var err error
	if mode == neo4j.AccessModeRead {
		_, err = session.ExecuteRead(ctx, txWork)
	} else {
		_, err = session.ExecuteWrite(ctx, txWork)
	}
	// Failing to acquire a connection means no statement was sent.
	if err != nil && !started && neo4j.IsConnectivityError(err) {
		return &unsentError{err: err}
	}
	return err
}

func (d *neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	if err := d.driver.VerifyConnectivity(ctx); err != nil {
		if neo4j.IsConnectivityError(err) {
			return &unsentError{err: err}
		}
		return err
	}
	return nil
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// managedTx collects results eagerly so records never outlive the transaction.
type managedTx struct {
	tx neo4j.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := m.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

// unsentError marks a failure that happened before any statement reached the server.
type unsentError struct {
	err error
}

func (e *unsentError) Error() string     { return e.err.Error() }
func (e *unsentError) Unwrap() error     { return e.err }
func (e *unsentError) SafeToRetry() bool { return true }

func neo4jSafeToRetry(err error) bool {
	var unsent *unsentError
	return errors.As(err, &unsent)
}

func neo4jIsConnection(err error) bool {
	return neo4j.IsConnectivityError(err)
}

// isConstraintViolation reports whether err is a uniqueness rejection.
func isConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == neo4jConstraintViolation
}
