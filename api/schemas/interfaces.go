package schemas

import (
	"context"
)

// BackendType names a storage engine implementing GraphBackend.
type BackendType string

const (
	BackendPostgres BackendType = "postgres"
	BackendNeo4j    BackendType = "neo4j"
	BackendMemory   BackendType = "memory"
)

// -- Centralized Graph Storage Interface --

// GraphBackend is the uniform node/edge contract. Every implementation must
// produce identical observable results for the same sequence of calls, so
// callers can switch engines without code changes.
//
// Reads return a nil entity (and no error) for ids that are missing or
// soft-deleted. Operations that require a referent return NodeNotFoundError
// or EdgeNotFoundError instead.
type GraphBackend interface {
	// Connect opens the underlying pool. Calling it twice is a no-op.
	Connect(ctx context.Context) error
	// Disconnect releases the pool. Calling it twice is a no-op.
	Disconnect(ctx context.Context) error
	// Backend identifies the implementation.
	Backend() BackendType

	// CreateNode persists a node, assigning an id when none is given.
	CreateNode(ctx context.Context, input NodeInput) (GraphNode, error)
	// GetNode returns the live node with the given id, or nil.
	GetNode(ctx context.Context, id string) (*GraphNode, error)
	// UpdateNode replaces labels and merges properties of a live node.
	UpdateNode(ctx context.Context, id string, update NodeUpdate) (*GraphNode, error)
	// DeleteNode soft-deletes a node together with its incident edges.
	DeleteNode(ctx context.Context, id string) error
	// BatchCreateNodes persists all inputs in a single transaction or none of them.
	BatchCreateNodes(ctx context.Context, inputs []NodeInput) ([]GraphNode, error)

	// CreateEdge links two live nodes.
	CreateEdge(ctx context.Context, input EdgeInput) (GraphEdge, error)
	// GetEdge returns the live edge with the given id, or nil.
	GetEdge(ctx context.Context, id string) (*GraphEdge, error)
	// DeleteEdge soft-deletes an edge.
	DeleteEdge(ctx context.Context, id string) error
	// GetNodeEdges lists the live edges incident to a node, ordered by edge id.
	GetNodeEdges(ctx context.Context, nodeID string, direction Direction) ([]GraphEdge, error)

	// Traverse returns the nodes reachable from startID within the given
	// bounds, ordered by discovery depth and then node id. The start node is
	// never part of the result.
	Traverse(ctx context.Context, startID string, params TraversalParams) ([]GraphNode, error)
	// FindShortestPath returns the path with the fewest edges from startID to
	// endID following outgoing edges, or nil when none exists within maxDepth.
	// Ties go to the lexicographically smallest edge-id sequence.
	FindShortestPath(ctx context.Context, startID, endID string, maxDepth int) (*Path, error)
	// FindAllPaths returns every simple path from startID to endID within
	// maxDepth, ordered by length and then edge-id sequence. A limit of zero
	// or less means no cap.
	FindAllPaths(ctx context.Context, startID, endID string, maxDepth, limit int) ([]Path, error)
}
