package knowledgegraph

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "nil becomes default", in: nil, want: []string{schemas.DefaultNodeLabel}},
		{name: "blank entries become default", in: []string{" ", ""}, want: []string{schemas.DefaultNodeLabel}},
		{name: "trimmed, deduplicated and sorted", in: []string{"Service ", "Host", "Service"}, want: []string{"Host", "Service"}},
		{name: "invalid character", in: []string{"Host-1"}, wantErr: true},
		{name: "reserved base label", in: []string{baseNodeLabel}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeLabels(tt.in)
			if tt.wantErr {
				var vErr *schemas.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "labels", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareNode(t *testing.T) {
	now := timestamp()

	t.Run("should generate an id and copy properties", func(t *testing.T) {
		props := schemas.Properties{"k": schemas.String("v")}
		node, err := prepareNode(schemas.NodeInput{Properties: props}, now)
		require.NoError(t, err)
		assert.Len(t, node.ID, 36)
		assert.Equal(t, now, node.CreatedAt)
		assert.Equal(t, now, node.UpdatedAt)

		props["k"] = schemas.String("changed")
		s, _ := node.Properties["k"].AsString()
		assert.Equal(t, "v", s, "the stored entity must not alias the input map")
	})

	t.Run("should always produce a non-nil property map", func(t *testing.T) {
		node, err := prepareNode(schemas.NodeInput{ID: "n"}, now)
		require.NoError(t, err)
		assert.NotNil(t, node.Properties)
	})
}

func TestNonFinitePropertiesRejectedByEveryBackend(t *testing.T) {
	ctx := context.Background()
	bad := schemas.Properties{"score": schemas.Float(math.NaN())}

	pg, mock, _ := newMockPostgresKG(t, testGraphConfig())
	neo, driver, _ := newScriptedNeo4jKG(t, neo4jTestConfig())
	backends := []schemas.GraphBackend{newConnectedKG(t), pg, neo}

	operations := []struct {
		name string
		run  func(b schemas.GraphBackend) error
	}{
		{"create node", func(b schemas.GraphBackend) error {
			_, err := b.CreateNode(ctx, schemas.NodeInput{ID: "n", Properties: bad})
			return err
		}},
		{"batch create", func(b schemas.GraphBackend) error {
			_, err := b.BatchCreateNodes(ctx, []schemas.NodeInput{{ID: "ok"}, {ID: "n", Properties: bad}})
			return err
		}},
		{"update node", func(b schemas.GraphBackend) error {
			_, err := b.UpdateNode(ctx, "n", schemas.NodeUpdate{Properties: bad})
			return err
		}},
		{"create edge", func(b schemas.GraphBackend) error {
			_, err := b.CreateEdge(ctx, schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Properties: bad})
			return err
		}},
	}

	for _, b := range backends {
		for _, op := range operations {
			t.Run(string(b.Backend())+"/"+op.name, func(t *testing.T) {
				err := op.run(b)
				var validation *schemas.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, "properties", validation.Field)
			})
		}
	}

	assert.NoError(t, mock.ExpectationsWereMet(), "postgres must not be queried")
	driver.assertDone(t)
	assert.Zero(t, driver.writes, "neo4j must not open a transaction")
}

func TestPrepareBatch(t *testing.T) {
	now := timestamp()

	t.Run("should report the failing item index", func(t *testing.T) {
		_, err := prepareBatch([]schemas.NodeInput{{ID: "ok"}, {Labels: []string{"bad label"}}}, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch item 1")
		var vErr *schemas.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("should reject duplicates", func(t *testing.T) {
		_, err := prepareBatch([]schemas.NodeInput{{ID: "x"}, {ID: "x"}}, now)
		var vErr *schemas.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Reason, "duplicate id 'x'")
	})
}

func TestPrepareEdge(t *testing.T) {
	now := timestamp()
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		in    schemas.EdgeInput
		field string
	}{
		{name: "missing source", in: schemas.EdgeInput{TargetID: "b", EdgeType: "LINK"}, field: "source_id"},
		{name: "missing target", in: schemas.EdgeInput{SourceID: "a", EdgeType: "LINK"}, field: "target_id"},
		{name: "bad type", in: schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINKS TO"}, field: "edge_type"},
		{name: "NaN weight", in: schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Weight: f(math.NaN())}, field: "weight"},
		{name: "infinite weight", in: schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Weight: f(math.Inf(1))}, field: "weight"},
		{name: "negative confidence", in: schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Confidence: f(-0.1)}, field: "confidence"},
		{name: "confidence above one", in: schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Confidence: f(1.01)}, field: "confidence"},
	}
	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := prepareEdge(tt.in, now)
			var vErr *schemas.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	t.Run("should accept boundary confidence and copy pointers", func(t *testing.T) {
		conf := 1.0
		edge, err := prepareEdge(schemas.EdgeInput{SourceID: "a", TargetID: "b", EdgeType: "LINK", Confidence: &conf}, now)
		require.NoError(t, err)
		require.NotNil(t, edge.Confidence)
		conf = 0.5
		assert.Equal(t, 1.0, *edge.Confidence)
		assert.Nil(t, edge.Weight)
		assert.NotEmpty(t, edge.ID)
	})
}

func TestApplyUpdate(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	original := schemas.Properties{"a": schemas.Int(1), "b": schemas.Int(2)}
	node := schemas.GraphNode{ID: "n", Labels: []string{"Host"}, Properties: original, CreatedAt: created, UpdatedAt: created}

	update, err := validateUpdate(schemas.NodeUpdate{
		Labels:     []string{"Service", "Host"},
		Properties: schemas.Properties{"c": schemas.Int(3)},
		RemoveKeys: []string{"a"},
	})
	require.NoError(t, err)
	applyUpdate(&node, update, later)

	assert.Equal(t, []string{"Host", "Service"}, node.Labels)
	assert.True(t, schemas.Properties{"b": schemas.Int(2), "c": schemas.Int(3)}.Equal(node.Properties))
	assert.Equal(t, later, node.UpdatedAt)
	assert.Equal(t, created, node.CreatedAt)
	assert.Len(t, original, 2, "the previous property map must stay untouched")
}

func TestNormalizeTraversal(t *testing.T) {
	t.Run("should default the direction to outgoing", func(t *testing.T) {
		params, err := normalizeTraversal(schemas.TraversalParams{MaxDepth: 2})
		require.NoError(t, err)
		assert.Equal(t, schemas.DirectionOutgoing, params.Direction)
	})

	t.Run("should reject an invalid edge type filter", func(t *testing.T) {
		_, err := normalizeTraversal(schemas.TraversalParams{MaxDepth: 2, EdgeTypes: []string{"DROP TABLE"}})
		var tErr *schemas.TraversalError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, "edge_types", tErr.Param)
	})
}

func TestOrderDiscovered(t *testing.T) {
	node := func(id string, labels ...string) schemas.GraphNode {
		return schemas.GraphNode{ID: id, Labels: labels}
	}
	found := []discovered{
		{node: node("z", "Host"), depth: 1},
		{node: node("c", "Service"), depth: 2},
		{node: node("a", "Host"), depth: 2},
		{node: node("m", "Service"), depth: 1},
	}

	t.Run("should order by depth then id", func(t *testing.T) {
		got := orderDiscovered(append([]discovered(nil), found...), nil, 0)
		assert.Equal(t, []string{"m", "z", "a", "c"}, nodeIDs(got))
	})

	t.Run("should filter labels before the limit", func(t *testing.T) {
		got := orderDiscovered(append([]discovered(nil), found...), []string{"Host"}, 1)
		assert.Equal(t, []string{"z"}, nodeIDs(got))
	})
}

func TestOrderPaths(t *testing.T) {
	paths := []pathIDs{
		{EdgeIDs: []string{"e5", "e6", "e7"}},
		{EdgeIDs: []string{"e2", "e3"}},
		{EdgeIDs: []string{"e1", "e4"}},
		{EdgeIDs: []string{"e2", "e3"}},
	}

	t.Run("should sort by length then edge ids and drop duplicates", func(t *testing.T) {
		got := orderPaths(append([]pathIDs(nil), paths...), 0)
		want := []pathIDs{
			{EdgeIDs: []string{"e1", "e4"}},
			{EdgeIDs: []string{"e2", "e3"}},
			{EdgeIDs: []string{"e5", "e6", "e7"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("orderPaths() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should cap at the limit", func(t *testing.T) {
		got := orderPaths(append([]pathIDs(nil), paths...), 1)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"e1", "e4"}, got[0].EdgeIDs)
	})

	t.Run("should pick the shortest without reordering the candidates", func(t *testing.T) {
		candidates := append([]pathIDs(nil), paths...)
		best, ok := pickShortest(candidates)
		require.True(t, ok)
		assert.Equal(t, []string{"e1", "e4"}, best.EdgeIDs)
		assert.Equal(t, paths, candidates)

		_, ok = pickShortest(nil)
		assert.False(t, ok)
	})

	t.Run("should treat a prefix as smaller", func(t *testing.T) {
		assert.Negative(t, compareEdgeSequences([]string{"a"}, []string{"a", "b"}))
		assert.Positive(t, compareEdgeSequences([]string{"b"}, []string{"a", "b"}))
		assert.Zero(t, compareEdgeSequences([]string{"a", "b"}, []string{"a", "b"}))
	})
}

func TestAssemblePath(t *testing.T) {
	nodes := map[string]schemas.GraphNode{"a": {ID: "a"}, "b": {ID: "b"}}
	edges := map[string]schemas.GraphEdge{"ab": {ID: "ab", SourceID: "a", TargetID: "b"}}

	t.Run("should assemble a complete path", func(t *testing.T) {
		p, ok := assemblePath(pathIDs{NodeIDs: []string{"a", "b"}, EdgeIDs: []string{"ab"}}, nodes, edges)
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, p.NodeIDs())
		assert.Equal(t, 1, p.Length())
	})

	t.Run("should drop a path that lost an element", func(t *testing.T) {
		_, ok := assemblePath(pathIDs{NodeIDs: []string{"a", "c"}, EdgeIDs: []string{"ac"}}, nodes, edges)
		assert.False(t, ok)
	})

	t.Run("should collect unique ids across paths", func(t *testing.T) {
		n, e := uniqueIDs([]pathIDs{
			{NodeIDs: []string{"a", "b"}, EdgeIDs: []string{"ab"}},
			{NodeIDs: []string{"a", "c"}, EdgeIDs: []string{"ac"}},
		})
		assert.Equal(t, []string{"a", "b", "c"}, n)
		assert.Equal(t, []string{"ab", "ac"}, e)
	})
}

func TestTimestampAndPredicates(t *testing.T) {
	ts := timestamp()
	assert.Equal(t, time.UTC, ts.Location())
	assert.Zero(t, ts.Nanosecond()%int(time.Microsecond))

	assert.Equal(t, "e.deleted_at IS NULL", liveSQL("e"))
	assert.Equal(t, "r.deleted_at IS NULL", liveCypher("r"))
}
