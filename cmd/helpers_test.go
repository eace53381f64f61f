package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/knowledgegraph"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
)

// memoryProvider hands out one in-memory graph per configured backend name,
// so state survives across command invocations within a test.
type memoryProvider struct {
	mu     sync.Mutex
	graphs map[string]*knowledgegraph.InMemoryKG
	opened []string
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{graphs: make(map[string]*knowledgegraph.InMemoryKG)}
}

func (p *memoryProvider) graph(t *testing.T, name string) *knowledgegraph.InMemoryKG {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	kg, ok := p.graphs[name]
	if !ok {
		var err error
		kg, err = knowledgegraph.NewInMemoryKG(nil)
		require.NoError(t, err)
		require.NoError(t, kg.Connect(context.Background()))
		p.graphs[name] = kg
	}
	return kg
}

func (p *memoryProvider) Open(ctx context.Context, cfg config.GraphConfig) (schemas.GraphBackend, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, cfg.Backend)
	kg, ok := p.graphs[cfg.Backend]
	if !ok {
		var err error
		if kg, err = knowledgegraph.NewInMemoryKG(nil); err != nil {
			return nil, nil, err
		}
		if err := kg.Connect(ctx); err != nil {
			return nil, nil, err
		}
		p.graphs[cfg.Backend] = kg
	}
	return kg, func() {}, nil
}

// resetForTest restores package state and installs provider for the test.
func resetForTest(t *testing.T, p backendProvider) {
	t.Helper()
	observability.ResetForTest()
	require.NoError(t, observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"}))

	previous := provider
	if p != nil {
		provider = p
	}
	t.Cleanup(func() {
		provider = previous
		observability.ResetForTest()
	})

	// Keep a stray config.yaml in the package directory from leaking in.
	t.Chdir(t.TempDir())
}

// executeCommand runs a fresh root command and returns what it wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := NewRootCommand()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := runRoot(context.Background(), rootCmd)
	return out.String(), err
}

// writeTempFile writes content to name inside a fresh temp dir.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// seedChain creates a -LINK-> b -LINK-> c on kg.
func seedChain(t *testing.T, kg schemas.GraphBackend) {
	t.Helper()
	ctx := context.Background()
	_, err := kg.BatchCreateNodes(ctx, []schemas.NodeInput{
		{ID: "a", Labels: []string{"Host"}},
		{ID: "b", Labels: []string{"Service"}, Properties: schemas.Properties{"port": schemas.Int(443)}},
		{ID: "c", Labels: []string{"Database"}},
	})
	require.NoError(t, err)
	for _, e := range []schemas.EdgeInput{
		{ID: "ab", SourceID: "a", TargetID: "b", EdgeType: "LINK"},
		{ID: "bc", SourceID: "b", TargetID: "c", EdgeType: "LINK"},
	} {
		_, err := kg.CreateEdge(ctx, e)
		require.NoError(t, err)
	}
}
