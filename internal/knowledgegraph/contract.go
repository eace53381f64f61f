package knowledgegraph

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// identifierPattern constrains labels and edge types. Both end up as native
// graph labels and relationship types, which are spliced into Cypher text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// baseNodeLabel is carried by every node in the native graph engine. It is
// never exposed as one of the node's own labels.
const baseNodeLabel = "GraphNode"

// timestamp returns the current time in the resolution both engines can store.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// normalizeLabels trims, de-duplicates and sorts labels, substituting the
// default label for an empty set.
func normalizeLabels(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !identifierPattern.MatchString(l) {
			return nil, &schemas.ValidationError{Field: "labels", Reason: fmt.Sprintf("label %q must match %s", l, identifierPattern)}
		}
		if l == baseNodeLabel {
			return nil, &schemas.ValidationError{Field: "labels", Reason: fmt.Sprintf("label %q is reserved", l)}
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	if len(out) == 0 {
		return []string{schemas.DefaultNodeLabel}, nil
	}
	sort.Strings(out)
	return out, nil
}

func validateEdgeType(edgeType string) error {
	if !identifierPattern.MatchString(edgeType) {
		return &schemas.ValidationError{Field: "edge_type", Reason: fmt.Sprintf("%q must match %s", edgeType, identifierPattern)}
	}
	return nil
}

// validateProperties rejects values that have no JSON encoding, such as
// non-finite numbers, so every backend refuses them the same way.
func validateProperties(field string, props schemas.Properties) error {
	if _, err := schemas.EncodeProperties(props); err != nil {
		return &schemas.ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

// prepareNode validates input and produces the entity that will be stored.
func prepareNode(input schemas.NodeInput, now time.Time) (schemas.GraphNode, error) {
	labels, err := normalizeLabels(input.Labels)
	if err != nil {
		return schemas.GraphNode{}, err
	}
	if err := validateProperties("properties", input.Properties); err != nil {
		return schemas.GraphNode{}, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return schemas.GraphNode{
		ID:         id,
		Labels:     labels,
		Properties: input.Properties.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// prepareBatch validates every input up front and rejects duplicate ids
// within the batch.
func prepareBatch(inputs []schemas.NodeInput, now time.Time) ([]schemas.GraphNode, error) {
	nodes := make([]schemas.GraphNode, 0, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		node, err := prepareNode(in, now)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if prev, dup := seen[node.ID]; dup {
			return nil, &schemas.ValidationError{
				Field:  "id",
				Reason: fmt.Sprintf("duplicate id '%s' at batch items %d and %d", node.ID, prev, i),
			}
		}
		seen[node.ID] = i
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// prepareEdge validates input and produces the entity that will be stored.
// Endpoint existence is checked by each backend inside its write transaction.
func prepareEdge(input schemas.EdgeInput, now time.Time) (schemas.GraphEdge, error) {
	if strings.TrimSpace(input.SourceID) == "" {
		return schemas.GraphEdge{}, &schemas.ValidationError{Field: "source_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(input.TargetID) == "" {
		return schemas.GraphEdge{}, &schemas.ValidationError{Field: "target_id", Reason: "must not be empty"}
	}
	if err := validateEdgeType(input.EdgeType); err != nil {
		return schemas.GraphEdge{}, err
	}
	if input.Weight != nil && (math.IsNaN(*input.Weight) || math.IsInf(*input.Weight, 0)) {
		return schemas.GraphEdge{}, &schemas.ValidationError{Field: "weight", Reason: "must be a finite number"}
	}
	if input.Confidence != nil && !(*input.Confidence >= 0 && *input.Confidence <= 1) {
		return schemas.GraphEdge{}, &schemas.ValidationError{Field: "confidence", Reason: "must be within [0, 1]"}
	}
	if err := validateProperties("properties", input.Properties); err != nil {
		return schemas.GraphEdge{}, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return schemas.GraphEdge{
		ID:         id,
		SourceID:   input.SourceID,
		TargetID:   input.TargetID,
		EdgeType:   input.EdgeType,
		Properties: input.Properties.Clone(),
		Weight:     copyFloat(input.Weight),
		Confidence: copyFloat(input.Confidence),
		CreatedAt:  now,
	}, nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// validateUpdate checks the property patch and normalizes the label
// replacement, if any.
func validateUpdate(update schemas.NodeUpdate) (schemas.NodeUpdate, error) {
	if err := validateProperties("properties", update.Properties); err != nil {
		return update, err
	}
	if update.Labels != nil {
		labels, err := normalizeLabels(update.Labels)
		if err != nil {
			return update, err
		}
		update.Labels = labels
	}
	return update, nil
}

// applyUpdate mutates node in place. update must have passed validateUpdate.
func applyUpdate(node *schemas.GraphNode, update schemas.NodeUpdate, now time.Time) {
	if update.Labels != nil {
		node.Labels = append([]string(nil), update.Labels...)
	}
	props := node.Properties.Clone()
	for k, v := range update.Properties {
		props[k] = v
	}
	for _, k := range update.RemoveKeys {
		delete(props, k)
	}
	node.Properties = props
	node.UpdatedAt = now
}

// normalizeTraversal validates params and fills in defaults.
func normalizeTraversal(params schemas.TraversalParams) (schemas.TraversalParams, error) {
	if params.MaxDepth < 0 {
		return params, &schemas.TraversalError{Param: "max_depth", Reason: "must be zero or greater"}
	}
	if params.Direction == "" {
		params.Direction = schemas.DirectionOutgoing
	}
	if !params.Direction.Valid() {
		return params, &schemas.TraversalError{Param: "direction", Reason: fmt.Sprintf("unknown direction %q", params.Direction)}
	}
	if params.Limit < 0 {
		return params, &schemas.TraversalError{Param: "limit", Reason: "must be zero or greater"}
	}
	for _, t := range params.EdgeTypes {
		if !identifierPattern.MatchString(t) {
			return params, &schemas.TraversalError{Param: "edge_types", Reason: fmt.Sprintf("%q is not a valid edge type", t)}
		}
	}
	return params, nil
}

func validatePathQuery(maxDepth int) error {
	if maxDepth < 0 {
		return &schemas.TraversalError{Param: "max_depth", Reason: "must be zero or greater"}
	}
	return nil
}

// -- Deterministic ordering --

// discovered pairs a node with the depth at which a traversal first reached it.
type discovered struct {
	node  schemas.GraphNode
	depth int
}

// orderDiscovered sorts by depth and then id, filters by label and applies
// the limit.
func orderDiscovered(found []discovered, labels []string, limit int) []schemas.GraphNode {
	sort.Slice(found, func(i, j int) bool {
		if found[i].depth != found[j].depth {
			return found[i].depth < found[j].depth
		}
		return found[i].node.ID < found[j].node.ID
	})
	out := make([]schemas.GraphNode, 0, len(found))
	for _, d := range found {
		if len(labels) > 0 && !d.node.HasAnyLabel(labels) {
			continue
		}
		out = append(out, d.node)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// pathIDs is the id skeleton of a path as produced by an engine query, before
// the nodes and edges are hydrated.
type pathIDs struct {
	NodeIDs []string
	EdgeIDs []string
}

// compareEdgeSequences orders two edge-id sequences element by element; a
// shorter sequence that is a prefix of the other sorts first.
func compareEdgeSequences(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// orderPaths sorts by length and then edge-id sequence, removes duplicates
// and applies limit when it is positive.
func orderPaths(paths []pathIDs, limit int) []pathIDs {
	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i].EdgeIDs) != len(paths[j].EdgeIDs) {
			return len(paths[i].EdgeIDs) < len(paths[j].EdgeIDs)
		}
		return compareEdgeSequences(paths[i].EdgeIDs, paths[j].EdgeIDs) < 0
	})
	out := paths[:0]
	for i, p := range paths {
		if i > 0 && len(p.EdgeIDs) == len(paths[i-1].EdgeIDs) && compareEdgeSequences(p.EdgeIDs, paths[i-1].EdgeIDs) == 0 {
			continue
		}
		out = append(out, p)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// pickShortest returns the winning candidate, or false when there is none.
func pickShortest(candidates []pathIDs) (pathIDs, bool) {
	ordered := orderPaths(append([]pathIDs(nil), candidates...), 1)
	if len(ordered) == 0 {
		return pathIDs{}, false
	}
	return ordered[0], true
}

// assemblePath builds a Path from hydrated lookups. It reports false when
// any element is no longer live, which happens when a concurrent delete lands
// between the walk and the hydration.
func assemblePath(ids pathIDs, nodes map[string]schemas.GraphNode, edges map[string]schemas.GraphEdge) (schemas.Path, bool) {
	p := schemas.Path{
		Nodes: make([]schemas.GraphNode, 0, len(ids.NodeIDs)),
		Edges: make([]schemas.GraphEdge, 0, len(ids.EdgeIDs)),
	}
	for _, id := range ids.NodeIDs {
		n, ok := nodes[id]
		if !ok {
			return schemas.Path{}, false
		}
		p.Nodes = append(p.Nodes, n)
	}
	for _, id := range ids.EdgeIDs {
		e, ok := edges[id]
		if !ok {
			return schemas.Path{}, false
		}
		p.Edges = append(p.Edges, e)
	}
	return p, true
}

// uniqueIDs flattens the node and edge ids of all paths for a hydration lookup.
func uniqueIDs(paths []pathIDs) (nodeIDs, edgeIDs []string) {
	seenN := make(map[string]struct{})
	seenE := make(map[string]struct{})
	for _, p := range paths {
		for _, id := range p.NodeIDs {
			if _, ok := seenN[id]; !ok {
				seenN[id] = struct{}{}
				nodeIDs = append(nodeIDs, id)
			}
		}
		for _, id := range p.EdgeIDs {
			if _, ok := seenE[id]; !ok {
				seenE[id] = struct{}{}
				edgeIDs = append(edgeIDs, id)
			}
		}
	}
	return nodeIDs, edgeIDs
}

// -- Soft delete --

// liveSQL is the soft-delete predicate for a relational row alias.
func liveSQL(alias string) string {
	return alias + ".deleted_at IS NULL"
}

// liveCypher is the soft-delete predicate for a Cypher node or relationship variable.
func liveCypher(variable string) string {
	return variable + ".deleted_at IS NULL"
}

func isLiveNode(n schemas.GraphNode) bool { return !n.IsDeleted() }
func isLiveEdge(e schemas.GraphEdge) bool { return !e.IsDeleted() }
