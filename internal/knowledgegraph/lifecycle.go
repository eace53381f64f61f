package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
)

// defaultRetry is used when a backend is built without an explicit policy.
var defaultRetry = config.RetryConfig{
	MaxAttempts:     3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// opRunner executes backend operations under a shared policy: a default
// deadline, backoff retry of failures the engine marks as unsent, error
// classification and metrics.
type opRunner struct {
	backend schemas.BackendType
	log     *zap.Logger
	metrics *observability.GraphMetrics
	retry   config.RetryConfig
	timeout time.Duration
	// safeToRetry reports whether err guarantees nothing reached the engine.
	safeToRetry func(err error) bool
	// isConnection reports whether err means the engine is unreachable.
	isConnection func(err error) bool
}

func newOpRunner(backend schemas.BackendType, logger *zap.Logger, metrics *observability.GraphMetrics, retry config.RetryConfig, timeout time.Duration) *opRunner {
	if retry.MaxAttempts <= 0 {
		retry = defaultRetry
	}
	return &opRunner{
		backend:      backend,
		log:          logger,
		metrics:      metrics,
		retry:        retry,
		timeout:      timeout,
		safeToRetry:  func(error) bool { return false },
		isConnection: func(error) bool { return false },
	}
}

// do runs fn until it succeeds, fails permanently, or the retry budget is
// spent. fn receives a context carrying the operation deadline.
func (r *opRunner) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	if r.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !r.safeToRetry(err) || attempt >= r.retry.MaxAttempts {
			return backoff.Permanent(err)
		}
		r.metrics.IncRetry(string(r.backend))
		r.log.Warn("Retrying operation after connection failure",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.retry.MaxAttempts-1)), ctx)

	err := r.classify(ctx, op, backoff.Retry(operation, policy))

	outcome := observability.OutcomeSuccess
	var canceled *schemas.QueryCanceledError
	switch {
	case err == nil:
	case errors.As(err, &canceled):
		outcome = observability.OutcomeCanceled
	default:
		outcome = observability.OutcomeError
	}
	elapsed := time.Since(start)
	r.metrics.ObserveOperation(string(r.backend), op, outcome, elapsed)
	r.log.Debug("Graph operation finished",
		zap.String("operation", op),
		zap.String("outcome", outcome),
		zap.Int("attempts", attempt),
		zap.Duration("elapsed", elapsed))
	return err
}

// classify maps a raw engine error onto the shared taxonomy. Errors that
// already belong to it pass through unchanged.
func (r *opRunner) classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		validation *schemas.ValidationError
		traversal  *schemas.TraversalError
		nodeMiss   *schemas.NodeNotFoundError
		edgeMiss   *schemas.EdgeNotFoundError
		conn       *schemas.ConnectionError
		canceled   *schemas.QueryCanceledError
	)
	if errors.As(err, &validation) || errors.As(err, &traversal) ||
		errors.As(err, &nodeMiss) || errors.As(err, &edgeMiss) ||
		errors.As(err, &conn) || errors.As(err, &canceled) {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &schemas.QueryCanceledError{Op: op, Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &schemas.QueryCanceledError{Op: op, Err: err}
	}
	if r.safeToRetry(err) || r.isConnection(err) {
		return &schemas.ConnectionError{Backend: r.backend, Op: op, Err: err}
	}
	return fmt.Errorf("%s %s failed: %w", r.backend, op, err)
}

// notConnected is returned by operations issued outside Connect/Disconnect.
func notConnected(backend schemas.BackendType, op string) error {
	return &schemas.ConnectionError{Backend: backend, Op: op, Err: schemas.ErrNotConnected}
}
