package schemas_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// TestStructJSONTags verifies the wire names of the data model. These are
// what the CLI prints and what other tools parse.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "GraphNode",
			structRef: schemas.GraphNode{},
			expectedTags: map[string]string{
				"ID":         "id",
				"Labels":     "labels",
				"Properties": "properties",
				"CreatedAt":  "created_at",
				"UpdatedAt":  "updated_at",
				"DeletedAt":  "deleted_at,omitempty",
			},
		},
		{
			name:      "GraphEdge",
			structRef: schemas.GraphEdge{},
			expectedTags: map[string]string{
				"ID":         "id",
				"SourceID":   "source_id",
				"TargetID":   "target_id",
				"EdgeType":   "edge_type",
				"Properties": "properties",
				"Weight":     "weight,omitempty",
				"Confidence": "confidence,omitempty",
				"CreatedAt":  "created_at",
				"DeletedAt":  "deleted_at,omitempty",
			},
		},
		{
			name:      "TraversalParams",
			structRef: schemas.TraversalParams{},
			expectedTags: map[string]string{
				"MaxDepth":   "max_depth",
				"Direction":  "direction",
				"EdgeTypes":  "edge_types,omitempty",
				"NodeLabels": "node_labels,omitempty",
				"Limit":      "limit,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tt.structRef)
			require.Equal(t, len(tt.expectedTags), typ.NumField(), "every field must be covered")
			for fieldName, expectedTag := range tt.expectedTags {
				field, found := typ.FieldByName(fieldName)
				require.True(t, found, "Field %s not found in struct %s", fieldName, tt.name)
				assert.Equal(t, expectedTag, field.Tag.Get("json"), "JSON tag mismatch for %s.%s", tt.name, fieldName)
				// YAML output mirrors the JSON names.
				assert.Equal(t, expectedTag, field.Tag.Get("yaml"), "YAML tag mismatch for %s.%s", tt.name, fieldName)
			}
		})
	}
}

func TestGraphNodeJSON(t *testing.T) {
	t.Parallel()
	ts := getTestTime(t)

	node := schemas.GraphNode{
		ID:         "n1",
		Labels:     []string{"Host"},
		Properties: schemas.Properties{"ip": schemas.String("10.0.0.1")},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "deleted_at"), "live nodes omit deleted_at")

	var decoded schemas.GraphNode
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, node.ID, decoded.ID)
	assert.True(t, node.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, node.Properties.Equal(decoded.Properties))
	assert.False(t, decoded.IsDeleted())

	decoded.DeletedAt = &ts
	assert.True(t, decoded.IsDeleted())
}

func TestDirection(t *testing.T) {
	t.Parallel()
	for _, d := range []schemas.Direction{schemas.DirectionOutgoing, schemas.DirectionIncoming, schemas.DirectionBoth} {
		assert.True(t, d.Valid(), string(d))
	}
	assert.False(t, schemas.Direction("").Valid())
	assert.False(t, schemas.Direction("outgoing").Valid(), "directions are case sensitive")
}

func TestHasAnyLabel(t *testing.T) {
	t.Parallel()
	node := schemas.GraphNode{Labels: []string{"Host", "Service"}}
	assert.True(t, node.HasAnyLabel([]string{"Database", "Service"}))
	assert.False(t, node.HasAnyLabel([]string{"Database"}))
	assert.False(t, node.HasAnyLabel(nil))
}

func TestPathAccessors(t *testing.T) {
	t.Parallel()
	path := schemas.Path{
		Nodes: []schemas.GraphNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []schemas.GraphEdge{{ID: "ab"}, {ID: "bc"}},
	}
	assert.Equal(t, 2, path.Length())
	assert.Equal(t, []string{"a", "b", "c"}, path.NodeIDs())
	assert.Equal(t, []string{"ab", "bc"}, path.EdgeIDs())

	empty := schemas.Path{}
	assert.Equal(t, 0, empty.Length())
	assert.Empty(t, empty.NodeIDs())
}
