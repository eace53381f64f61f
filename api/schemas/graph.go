package schemas

import (
	"time"
)

// -- Canonical Graph Data Model --

// DefaultNodeLabel is assigned when a node is created with an empty label set.
const DefaultNodeLabel = "Node"

// Direction selects which edges a traversal follows relative to the current node.
type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING" // source -> target
	DirectionIncoming Direction = "INCOMING" // target -> source
	DirectionBoth     Direction = "BOTH"     // either way
)

// Valid reports whether d is one of the recognized directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// GraphNode is a labeled vertex with JSON-valued properties. A non-nil
// DeletedAt marks the node as logically deleted; such nodes are never returned
// by reads or traversals.
type GraphNode struct {
	ID         string     `json:"id" yaml:"id"`
	Labels     []string   `json:"labels" yaml:"labels"`
	Properties Properties `json:"properties" yaml:"properties"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// IsDeleted reports whether the node has been soft-deleted.
func (n GraphNode) IsDeleted() bool { return n.DeletedAt != nil }

// HasAnyLabel reports whether the node carries at least one of labels.
func (n GraphNode) HasAnyLabel(labels []string) bool {
	for _, want := range labels {
		for _, have := range n.Labels {
			if have == want {
				return true
			}
		}
	}
	return false
}

// GraphEdge is a directed, typed relationship between two nodes.
type GraphEdge struct {
	ID         string     `json:"id" yaml:"id"`
	SourceID   string     `json:"source_id" yaml:"source_id"`
	TargetID   string     `json:"target_id" yaml:"target_id"`
	EdgeType   string     `json:"edge_type" yaml:"edge_type"`
	Properties Properties `json:"properties" yaml:"properties"`
	Weight     *float64   `json:"weight,omitempty" yaml:"weight,omitempty"`
	Confidence *float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"` // Conventionally 0.0-1.0.
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// IsDeleted reports whether the edge has been soft-deleted.
func (e GraphEdge) IsDeleted() bool { return e.DeletedAt != nil }

// TraversalParams bounds a breadth-first exploration.
type TraversalParams struct {
	// MaxDepth is the maximum number of hops. Zero yields no neighbors.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	// Direction defaults to OUTGOING when empty.
	Direction Direction `json:"direction" yaml:"direction"`
	// EdgeTypes restricts which relationships are followed; empty means all.
	EdgeTypes []string `json:"edge_types,omitempty" yaml:"edge_types,omitempty"`
	// NodeLabels filters the returned nodes (not the nodes walked through).
	NodeLabels []string `json:"node_labels,omitempty" yaml:"node_labels,omitempty"`
	// Limit caps the number of returned nodes; zero means no cap.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Path is an ordered walk: Nodes[i] and Nodes[i+1] are joined by Edges[i].
type Path struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}

// Length is the number of edges in the path.
func (p Path) Length() int { return len(p.Edges) }

// NodeIDs returns the ids of the nodes in walk order.
func (p Path) NodeIDs() []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// EdgeIDs returns the ids of the edges in walk order.
func (p Path) EdgeIDs() []string {
	ids := make([]string, len(p.Edges))
	for i, e := range p.Edges {
		ids[i] = e.ID
	}
	return ids
}

// -- Input Schemas --

// NodeInput describes a node to create. An empty ID is replaced by a fresh UUID.
type NodeInput struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Labels     []string   `json:"labels" yaml:"labels"`
	Properties Properties `json:"properties" yaml:"properties"`
}

// EdgeInput describes an edge to create. An empty ID is replaced by a fresh UUID.
type EdgeInput struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID   string     `json:"source_id" yaml:"source_id"`
	TargetID   string     `json:"target_id" yaml:"target_id"`
	EdgeType   string     `json:"edge_type" yaml:"edge_type"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
	Weight     *float64   `json:"weight,omitempty" yaml:"weight,omitempty"`
	Confidence *float64   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// NodeUpdate describes a mutation of an existing node. Nil Labels keeps the
// current label set; Properties are merged key by key and RemoveKeys are
// dropped afterwards.
type NodeUpdate struct {
	Labels     []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
	RemoveKeys []string   `json:"remove_keys,omitempty" yaml:"remove_keys,omitempty"`
}
