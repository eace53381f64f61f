package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/knowledgegraph"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
)

// backendProvider opens a connected graph backend. Tests replace it with one
// that hands out a pre-seeded in-memory graph.
type backendProvider interface {
	// Open returns a connected backend and a cleanup function that disconnects it.
	Open(ctx context.Context, cfg config.GraphConfig) (schemas.GraphBackend, func(), error)
}

// defaultBackendProvider resolves the backend through the knowledgegraph factory.
type defaultBackendProvider struct{}

var (
	provider backendProvider = defaultBackendProvider{}

	metricsOnce sync.Once
	metrics     *observability.GraphMetrics
)

// graphMetrics registers the graph instruments on the default registry once per process.
func graphMetrics() *observability.GraphMetrics {
	metricsOnce.Do(func() {
		metrics = observability.NewGraphMetrics(prometheus.DefaultRegisterer)
	})
	return metrics
}

func (defaultBackendProvider) Open(ctx context.Context, cfg config.GraphConfig) (schemas.GraphBackend, func(), error) {
	logger := observability.GetLogger()
	backend, err := knowledgegraph.New(ctx, cfg, logger, graphMetrics())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		// The caller's context may already be canceled.
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := backend.Disconnect(disconnectCtx); err != nil {
			logger.Warn("Failed to disconnect graph backend", zap.Error(err))
		}
	}
	return backend, cleanup, nil
}

// openBackend opens the configured backend and applies --load when set.
func openBackend(cmd *cobra.Command, opts *rootOptions) (schemas.GraphBackend, func(), error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, nil, err
	}
	return openBackendFor(cmd, opts, cfg.Graph())
}

func openBackendFor(cmd *cobra.Command, opts *rootOptions, graphCfg config.GraphConfig) (schemas.GraphBackend, func(), error) {
	backend, cleanup, err := provider.Open(cmd.Context(), graphCfg)
	if err != nil {
		return nil, nil, err
	}
	if opts.loadFile != "" {
		if err := loadGraphFile(cmd.Context(), backend, opts.loadFile); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return backend, cleanup, nil
}

// graphFile is the import format accepted by --load.
type graphFile struct {
	Nodes []struct {
		ID         string         `yaml:"id"`
		Labels     []string       `yaml:"labels"`
		Properties map[string]any `yaml:"properties"`
	} `yaml:"nodes"`
	Edges []struct {
		ID         string         `yaml:"id"`
		Source     string         `yaml:"source"`
		Target     string         `yaml:"target"`
		Type       string         `yaml:"type"`
		Properties map[string]any `yaml:"properties"`
		Weight     *float64       `yaml:"weight"`
		Confidence *float64       `yaml:"confidence"`
	} `yaml:"edges"`
}

// loadGraphFile imports nodes in one batch, then edges one by one. JSON input
// works too since YAML is a superset.
func loadGraphFile(ctx context.Context, backend schemas.GraphBackend, path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand graph file path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("failed to read graph file: %w", err)
	}
	var file graphFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse graph file %s: %w", path, err)
	}

	inputs := make([]schemas.NodeInput, 0, len(file.Nodes))
	for _, n := range file.Nodes {
		props, err := schemas.PropertiesFromMap(n.Properties)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		inputs = append(inputs, schemas.NodeInput{ID: n.ID, Labels: n.Labels, Properties: props})
	}
	if len(inputs) > 0 {
		if _, err := backend.BatchCreateNodes(ctx, inputs); err != nil {
			return fmt.Errorf("failed to import nodes: %w", err)
		}
	}

	for _, e := range file.Edges {
		props, err := schemas.PropertiesFromMap(e.Properties)
		if err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		_, err = backend.CreateEdge(ctx, schemas.EdgeInput{
			ID:         e.ID,
			SourceID:   e.Source,
			TargetID:   e.Target,
			EdgeType:   e.Type,
			Properties: props,
			Weight:     e.Weight,
			Confidence: e.Confidence,
		})
		if err != nil {
			return fmt.Errorf("failed to import edge %q: %w", e.ID, err)
		}
	}

	observability.ComponentLogger("import").Info("Graph file imported",
		zap.String("path", path),
		zap.Int("nodes", len(inputs)),
		zap.Int("edges", len(file.Edges)),
	)
	return nil
}

var (
	metricsMu     sync.Mutex
	metricsServer *http.Server
)

// startMetricsServer exposes the default registry for the lifetime of the command.
func startMetricsServer(cfg config.MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	graphMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	metricsMu.Lock()
	metricsServer = srv
	metricsMu.Unlock()

	logger := observability.ComponentLogger("metrics")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.String("addr", cfg.Addr), zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", cfg.Addr))
	return nil
}

func stopMetricsServer(ctx context.Context) {
	metricsMu.Lock()
	srv := metricsServer
	metricsServer = nil
	metricsMu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
