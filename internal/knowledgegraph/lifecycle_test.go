package knowledgegraph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unsentTestError mimics an engine error that guarantees nothing was sent.
type unsentTestError struct{}

func (unsentTestError) Error() string     { return "dial tcp: connection refused" }
func (unsentTestError) SafeToRetry() bool { return true }

func isUnsentTestError(err error) bool {
	var u unsentTestError
	return errors.As(err, &u)
}

var fastRetry = config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func newTestRunner(t *testing.T, timeout time.Duration) (*opRunner, *prometheus.Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	r := newOpRunner(schemas.BackendPostgres, zap.New(core), observability.NewGraphMetrics(reg), fastRetry, timeout)
	r.safeToRetry = isUnsentTestError
	return r, reg, logs
}

func TestOpRunnerRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("should retry unsent failures until the operation succeeds", func(t *testing.T) {
		r, reg, logs := newTestRunner(t, 0)
		attempts := 0
		err := r.do(ctx, "get_node", func(context.Context) error {
			attempts++
			if attempts < 3 {
				return unsentTestError{}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 2, logs.FilterMessage("Retrying operation after connection failure").Len())

		expected := `
# HELP scalpel_graph_connection_retries_total Total number of connection-level retries
# TYPE scalpel_graph_connection_retries_total counter
scalpel_graph_connection_retries_total{backend="postgres"} 2
`
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "scalpel_graph_connection_retries_total"))
	})

	t.Run("should surface a ConnectionError once attempts are exhausted", func(t *testing.T) {
		r, reg, _ := newTestRunner(t, 0)
		attempts := 0
		err := r.do(ctx, "get_node", func(context.Context) error {
			attempts++
			return unsentTestError{}
		})
		var connErr *schemas.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, schemas.BackendPostgres, connErr.Backend)
		assert.Equal(t, "get_node", connErr.Op)
		assert.Equal(t, fastRetry.MaxAttempts, attempts)

		expected := `
# HELP scalpel_graph_operations_total Total number of graph backend operations
# TYPE scalpel_graph_operations_total counter
scalpel_graph_operations_total{backend="postgres",operation="get_node",outcome="error"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "scalpel_graph_operations_total"))
	})

	t.Run("should never retry a failure that may have reached the engine", func(t *testing.T) {
		r, _, _ := newTestRunner(t, 0)
		boom := errors.New("syntax error at or near")
		attempts := 0
		err := r.do(ctx, "traverse", func(context.Context) error {
			attempts++
			return boom
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "postgres traverse failed")
	})

	t.Run("should pass typed errors through unchanged", func(t *testing.T) {
		r, _, _ := newTestRunner(t, 0)
		notFound := &schemas.NodeNotFoundError{ID: "n1"}
		err := r.do(ctx, "update_node", func(context.Context) error { return notFound })
		assert.Same(t, notFound, err)
	})
}

func TestOpRunnerDeadlines(t *testing.T) {
	t.Run("should apply the default timeout when the caller has no deadline", func(t *testing.T) {
		r, reg, _ := newTestRunner(t, 20*time.Millisecond)
		err := r.do(context.Background(), "traverse", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			<-ctx.Done()
			return ctx.Err()
		})
		var canceled *schemas.QueryCanceledError
		require.ErrorAs(t, err, &canceled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		expected := `
# HELP scalpel_graph_operations_total Total number of graph backend operations
# TYPE scalpel_graph_operations_total counter
scalpel_graph_operations_total{backend="postgres",operation="traverse",outcome="canceled"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "scalpel_graph_operations_total"))
	})

	t.Run("should keep the caller's deadline", func(t *testing.T) {
		r, _, _ := newTestRunner(t, time.Hour)
		want := time.Now().Add(time.Minute)
		ctx, cancel := context.WithDeadline(context.Background(), want)
		defer cancel()

		err := r.do(ctx, "get_node", func(ctx context.Context) error {
			got, ok := ctx.Deadline()
			require.True(t, ok)
			assert.Equal(t, want, got)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("should not retry once the context is done", func(t *testing.T) {
		r, _, _ := newTestRunner(t, 0)
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := r.do(ctx, "get_node", func(context.Context) error {
			attempts++
			cancel()
			return unsentTestError{}
		})
		assert.Equal(t, 1, attempts)
		assert.ErrorIs(t, err, schemas.ErrQueryCanceled)
	})
}

func TestNewOpRunnerDefaults(t *testing.T) {
	r := newOpRunner(schemas.BackendMemory, zap.NewNop(), nil, config.RetryConfig{}, 0)
	assert.Equal(t, defaultRetry, r.retry)
	assert.False(t, r.safeToRetry(unsentTestError{}), "backends opt in to retries")

	err := r.do(context.Background(), "connect", func(context.Context) error { return nil })
	assert.NoError(t, err, "a nil metrics sink must be accepted")
}

func TestNotConnected(t *testing.T) {
	err := notConnected(schemas.BackendNeo4j, "get_edge")
	var connErr *schemas.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, schemas.BackendNeo4j, connErr.Backend)
	assert.ErrorIs(t, err, schemas.ErrNotConnected)
}
