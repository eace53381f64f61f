package knowledgegraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
)

// constructor builds an unconnected backend.
type constructor func(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) schemas.GraphBackend

// registry maps every supported backend key to its constructor.
var registry = map[schemas.BackendType]constructor{
	schemas.BackendPostgres: func(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) schemas.GraphBackend {
		return NewPostgresKG(cfg, logger, metrics)
	},
	schemas.BackendNeo4j: func(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) schemas.GraphBackend {
		return NewNeo4jKG(cfg, logger, metrics)
	},
	schemas.BackendMemory: func(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) schemas.GraphBackend {
		return NewInMemoryKGWithConfig(cfg, logger, metrics)
	},
}

// Backends lists the registered backend keys in sorted order.
func Backends() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// Build resolves cfg.Backend to an unconnected backend.
func Build(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) (schemas.GraphBackend, error) {
	key := schemas.BackendType(strings.ToLower(strings.TrimSpace(cfg.Backend)))
	ctor, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", schemas.ErrUnknownBackend, cfg.Backend, strings.Join(Backends(), ", "))
	}
	return ctor(cfg, logger, metrics), nil
}

// New builds the configured backend and connects it.
func New(ctx context.Context, cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) (schemas.GraphBackend, error) {
	backend, err := Build(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect %s backend: %w", backend.Backend(), err)
	}
	return backend, nil
}
