package equivalence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/equivalence"
	"github.com/xkilldash9x/scalpel-graph/internal/knowledgegraph"
)

// seed builds a -> b -> c plus a -> c on a fresh in-memory graph.
func seed(t *testing.T, hostProps schemas.Properties) *knowledgegraph.InMemoryKG {
	t.Helper()
	ctx := context.Background()
	kg, err := knowledgegraph.NewInMemoryKG(zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, kg.Connect(ctx))

	_, err = kg.BatchCreateNodes(ctx, []schemas.NodeInput{
		{ID: "a", Labels: []string{"Host"}, Properties: hostProps},
		{ID: "b", Labels: []string{"Service"}, Properties: schemas.Properties{"port": schemas.Int(443)}},
		{ID: "c", Labels: []string{"Database"}},
	})
	require.NoError(t, err)
	for _, e := range []schemas.EdgeInput{
		{ID: "ab", SourceID: "a", TargetID: "b", EdgeType: "RUNS"},
		{ID: "bc", SourceID: "b", TargetID: "c", EdgeType: "CONNECTS"},
		{ID: "ac", SourceID: "a", TargetID: "c", EdgeType: "CONNECTS"},
	} {
		_, err = kg.CreateEdge(ctx, e)
		require.NoError(t, err)
	}
	return kg
}

func TestCompareTraversal(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	params := schemas.TraversalParams{MaxDepth: 2, Direction: schemas.DirectionOutgoing}

	t.Run("should report identical graphs as equivalent", func(t *testing.T) {
		left := seed(t, schemas.Properties{"ip": schemas.String("10.0.0.1"), "last_seen": schemas.String("monday")})
		right := seed(t, schemas.Properties{"ip": schemas.String("10.0.0.1"), "last_seen": schemas.String("tuesday")})

		checker := equivalence.NewChecker(left, right, zaptest.NewLogger(t), equivalence.DefaultOptions())
		report, err := checker.CompareTraversal(ctx, "c", schemas.TraversalParams{MaxDepth: 2, Direction: schemas.DirectionIncoming})
		require.NoError(t, err)

		assert.True(t, report.Equivalent(), report.Diff)
		assert.Contains(t, report.Left.Keys, "a")
		assert.Equal(t, "traverse", report.Operation)
		assert.Equal(t, schemas.BackendMemory, report.Left.Backend)
		assert.Equal(t, report.Left.Keys, report.Right.Keys)
		assert.Empty(t, report.OnlyLeft)
		assert.Empty(t, report.OnlyRight)
	})

	t.Run("should surface a property difference", func(t *testing.T) {
		left := seed(t, schemas.Properties{"ip": schemas.String("10.0.0.1")})
		right := seed(t, schemas.Properties{"ip": schemas.String("10.0.0.2")})
		// Traverse returns neighbors, so make a the neighbor of something.
		for _, kg := range []*knowledgegraph.InMemoryKG{left, right} {
			_, err := kg.CreateNode(ctx, schemas.NodeInput{ID: "root", Labels: []string{"Network"}})
			require.NoError(t, err)
			_, err = kg.CreateEdge(ctx, schemas.EdgeInput{ID: "ra", SourceID: "root", TargetID: "a", EdgeType: "CONTAINS"})
			require.NoError(t, err)
		}

		checker := equivalence.NewChecker(left, right, nil, equivalence.DefaultOptions())
		report, err := checker.CompareTraversal(ctx, "root", params)
		require.NoError(t, err)

		assert.False(t, report.Equivalent())
		assert.True(t, report.OrderMatches)
		assert.Contains(t, report.Diff, "10.0.0.1")

		idsOnly := equivalence.DefaultOptions()
		idsOnly.CompareContent = false
		report, err = equivalence.NewChecker(left, right, nil, idsOnly).CompareTraversal(ctx, "root", params)
		require.NoError(t, err)
		assert.True(t, report.Equivalent())
		assert.Empty(t, report.Diff)
	})

	t.Run("should list nodes missing on one side", func(t *testing.T) {
		left := seed(t, nil)
		right := seed(t, nil)
		_, err := right.CreateNode(ctx, schemas.NodeInput{ID: "d", Labels: []string{"Queue"}})
		require.NoError(t, err)
		_, err = right.CreateEdge(ctx, schemas.EdgeInput{ID: "cd", SourceID: "c", TargetID: "d", EdgeType: "PUBLISHES"})
		require.NoError(t, err)

		report, err := equivalence.NewChecker(left, right, nil, equivalence.DefaultOptions()).
			CompareTraversal(ctx, "a", params)
		require.NoError(t, err)

		assert.False(t, report.Equivalent())
		assert.Empty(t, report.OnlyLeft)
		assert.Equal(t, []string{"d"}, report.OnlyRight)
	})
}

func TestCompareIgnoreOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	left := seed(t, nil)
	right := seed(t, nil)

	opts := equivalence.DefaultOptions()
	opts.IgnoreOrder = true
	report, err := equivalence.NewChecker(left, right, nil, opts).
		CompareTraversal(ctx, "a", schemas.TraversalParams{MaxDepth: 1})
	require.NoError(t, err)
	assert.True(t, report.OrderIgnored)
	assert.True(t, report.Equivalent())
}

func TestComparePaths(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("should agree on the shortest path", func(t *testing.T) {
		checker := equivalence.NewChecker(seed(t, nil), seed(t, nil), nil, equivalence.DefaultOptions())
		report, err := checker.CompareShortestPath(ctx, "a", "c", 3)
		require.NoError(t, err)
		assert.True(t, report.Equivalent())
		assert.Equal(t, []string{"a -[ac]-> c"}, report.Left.Keys)
	})

	t.Run("should treat a missing path as an empty answer", func(t *testing.T) {
		checker := equivalence.NewChecker(seed(t, nil), seed(t, nil), nil, equivalence.DefaultOptions())
		report, err := checker.CompareShortestPath(ctx, "c", "a", 3)
		require.NoError(t, err)
		assert.True(t, report.Equivalent())
		assert.Empty(t, report.Left.Keys)
	})

	t.Run("should compare all paths in order", func(t *testing.T) {
		left := seed(t, nil)
		right := seed(t, nil)
		require.NoError(t, right.DeleteEdge(ctx, "ac"))

		report, err := equivalence.NewChecker(left, right, nil, equivalence.DefaultOptions()).
			CompareAllPaths(ctx, "a", "c", 3, 10)
		require.NoError(t, err)
		assert.False(t, report.Equivalent())
		assert.Equal(t, []string{"a -[ac]-> c", "a -[ab]-> b -[bc]-> c"}, report.Left.Keys)
		assert.Equal(t, []string{"a -[ac]-> c"}, report.OnlyLeft)
	})
}

func TestPathKey(t *testing.T) {
	t.Parallel()
	path := schemas.Path{
		Nodes: []schemas.GraphNode{{ID: "a"}, {ID: "b"}},
		Edges: []schemas.GraphEdge{{ID: "ab"}},
	}
	assert.Equal(t, "a -[ab]-> b", equivalence.PathKey(path))
	assert.Equal(t, "a", equivalence.PathKey(schemas.Path{Nodes: []schemas.GraphNode{{ID: "a"}}}))
}

// failingBackend answers every traversal with an error.
type failingBackend struct {
	schemas.GraphBackend
	err error
}

func (f *failingBackend) Backend() schemas.BackendType { return schemas.BackendNeo4j }

func (f *failingBackend) Traverse(ctx context.Context, startID string, params schemas.TraversalParams) ([]schemas.GraphNode, error) {
	return nil, f.err
}

func TestCompareBackendFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	boom := errors.New("connection reset")
	checker := equivalence.NewChecker(seed(t, nil), &failingBackend{err: boom}, nil, equivalence.DefaultOptions())

	report, err := checker.CompareTraversal(context.Background(), "a", schemas.TraversalParams{MaxDepth: 1})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to run traverse on both backends: neo4j (right)")
}
