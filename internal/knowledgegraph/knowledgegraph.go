package knowledgegraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/btree"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
)

// InMemoryKG provides a fast, ephemeral, in-memory implementation of the GraphBackend interface.
// It's great for testing, short lived scripts, and as a reference when comparing engines.
// Soft-deleted entities stay in the indexes, exactly as they stay in the database tables.
type InMemoryKG struct {
	nodes    btree.Map[string, schemas.GraphNode]
	edges    btree.Map[string, schemas.GraphEdge]
	outgoing map[string]*btree.Set[string] // Key: node ID, Value: ordered edge IDs
	incoming map[string]*btree.Set[string] // Key: node ID, Value: ordered edge IDs

	connected bool
	mu        sync.RWMutex
	log       *zap.Logger
	runner    *opRunner
}

// Ensures InMemoryKG correctly implements the GraphBackend interface at compile time.
var _ schemas.GraphBackend = (*InMemoryKG)(nil)

// NewInMemoryKG creates a new, empty in-memory knowledge graph with default settings.
func NewInMemoryKG(logger *zap.Logger) (*InMemoryKG, error) {
	return NewInMemoryKGWithConfig(config.GraphConfig{}, logger, nil), nil
}

// NewInMemoryKGWithConfig creates an empty graph that honors the query
// timeout of cfg and reports to metrics.
func NewInMemoryKGWithConfig(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *InMemoryKG {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("memory_kg")
	return &InMemoryKG{
		outgoing: make(map[string]*btree.Set[string]),
		incoming: make(map[string]*btree.Set[string]),
		log:      log,
		runner:   newOpRunner(schemas.BackendMemory, log, metrics, cfg.Retry, cfg.QueryTimeout),
	}
}

// Backend identifies the implementation.
func (kg *InMemoryKG) Backend() schemas.BackendType { return schemas.BackendMemory }

// Connect marks the graph as usable. Stored data survives a Disconnect.
func (kg *InMemoryKG) Connect(ctx context.Context) error {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.connected = true
	return nil
}

// Disconnect marks the graph as unusable until the next Connect.
func (kg *InMemoryKG) Disconnect(ctx context.Context) error {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.connected = false
	return nil
}

// read runs fn under the read lock once the graph is known to be connected.
func (kg *InMemoryKG) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return kg.runner.do(ctx, op, func(ctx context.Context) error {
		kg.mu.RLock()
		defer kg.mu.RUnlock()
		if !kg.connected {
			return notConnected(schemas.BackendMemory, op)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// write runs fn under the write lock once the graph is known to be connected.
// fn must validate everything before its first mutation so that a failure
// leaves the graph untouched.
func (kg *InMemoryKG) write(ctx context.Context, op string, fn func() error) error {
	return kg.runner.do(ctx, op, func(ctx context.Context) error {
		kg.mu.Lock()
		defer kg.mu.Unlock()
		if !kg.connected {
			return notConnected(schemas.BackendMemory, op)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	})
}

// liveNode returns the node when it exists and is not soft-deleted.
// Assumes the caller holds the lock.
func (kg *InMemoryKG) liveNode(id string) (schemas.GraphNode, bool) {
	n, ok := kg.nodes.Get(id)
	if !ok || !isLiveNode(n) {
		return schemas.GraphNode{}, false
	}
	return n, true
}

// liveEdge returns the edge when it exists and is not soft-deleted.
// Assumes the caller holds the lock.
func (kg *InMemoryKG) liveEdge(id string) (schemas.GraphEdge, bool) {
	e, ok := kg.edges.Get(id)
	if !ok || !isLiveEdge(e) {
		return schemas.GraphEdge{}, false
	}
	return e, true
}

// -- Nodes --

// CreateNode adds a node to the graph. Reusing an existing id is rejected.
func (kg *InMemoryKG) CreateNode(ctx context.Context, input schemas.NodeInput) (schemas.GraphNode, error) {
	node, err := prepareNode(input, timestamp())
	if err != nil {
		return schemas.GraphNode{}, err
	}
	err = kg.write(ctx, "create_node", func() error {
		if _, exists := kg.nodes.Get(node.ID); exists {
			return &schemas.ValidationError{Field: "id", Reason: fmt.Sprintf("'%s' already exists", node.ID)}
		}
		kg.nodes.Set(node.ID, cloneNode(node))
		return nil
	})
	if err != nil {
		return schemas.GraphNode{}, err
	}
	kg.log.Debug("Node created", zap.String("id", node.ID), zap.Strings("labels", node.Labels))
	return node, nil
}

// GetNode retrieves a live node by its ID, or nil.
func (kg *InMemoryKG) GetNode(ctx context.Context, id string) (*schemas.GraphNode, error) {
	var out *schemas.GraphNode
	err := kg.read(ctx, "get_node", func(context.Context) error {
		if n, ok := kg.liveNode(id); ok {
			c := cloneNode(n)
			out = &c
		}
		return nil
	})
	return out, err
}

// UpdateNode replaces labels and merges properties of a live node.
func (kg *InMemoryKG) UpdateNode(ctx context.Context, id string, update schemas.NodeUpdate) (*schemas.GraphNode, error) {
	update, err := validateUpdate(update)
	if err != nil {
		return nil, err
	}
	var out schemas.GraphNode
	err = kg.write(ctx, "update_node", func() error {
		n, ok := kg.liveNode(id)
		if !ok {
			return &schemas.NodeNotFoundError{ID: id}
		}
		applyUpdate(&n, update, timestamp())
		kg.nodes.Set(id, n)
		out = cloneNode(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNode soft-deletes a node and its live incident edges.
func (kg *InMemoryKG) DeleteNode(ctx context.Context, id string) error {
	return kg.write(ctx, "delete_node", func() error {
		n, ok := kg.liveNode(id)
		if !ok {
			return &schemas.NodeNotFoundError{ID: id}
		}
		now := timestamp()
		n.DeletedAt = &now
		n.UpdatedAt = now
		kg.nodes.Set(id, n)

		cascaded := 0
		for _, index := range []map[string]*btree.Set[string]{kg.outgoing, kg.incoming} {
			set, ok := index[id]
			if !ok {
				continue
			}
			set.Scan(func(edgeID string) bool {
				if e, live := kg.liveEdge(edgeID); live {
					e.DeletedAt = &now
					kg.edges.Set(edgeID, e)
					cascaded++
				}
				return true
			})
		}
		kg.log.Debug("Node soft-deleted", zap.String("id", id), zap.Int("edges", cascaded))
		return nil
	})
}

// BatchCreateNodes adds every node or none of them.
func (kg *InMemoryKG) BatchCreateNodes(ctx context.Context, inputs []schemas.NodeInput) ([]schemas.GraphNode, error) {
	nodes, err := prepareBatch(inputs, timestamp())
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return []schemas.GraphNode{}, nil
	}
	err = kg.write(ctx, "batch_create_nodes", func() error {
		for _, n := range nodes {
			if _, exists := kg.nodes.Get(n.ID); exists {
				return &schemas.ValidationError{Field: "id", Reason: fmt.Sprintf("'%s' already exists", n.ID)}
			}
		}
		for _, n := range nodes {
			kg.nodes.Set(n.ID, cloneNode(n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	kg.log.Debug("Node batch created", zap.Int("count", len(nodes)))
	return nodes, nil
}

// -- Edges --

// CreateEdge links two live nodes.
func (kg *InMemoryKG) CreateEdge(ctx context.Context, input schemas.EdgeInput) (schemas.GraphEdge, error) {
	edge, err := prepareEdge(input, timestamp())
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	err = kg.write(ctx, "create_edge", func() error {
		// 1. Validate existence of source and destination nodes.
		if _, ok := kg.liveNode(edge.SourceID); !ok {
			return &schemas.NodeNotFoundError{ID: edge.SourceID}
		}
		if _, ok := kg.liveNode(edge.TargetID); !ok {
			return &schemas.NodeNotFoundError{ID: edge.TargetID}
		}
		if _, exists := kg.edges.Get(edge.ID); exists {
			return &schemas.ValidationError{Field: "id", Reason: fmt.Sprintf("'%s' already exists", edge.ID)}
		}

		// 2. Store the edge and index it from both ends.
		kg.edges.Set(edge.ID, cloneEdge(edge))
		indexEdge(kg.outgoing, edge.SourceID, edge.ID)
		indexEdge(kg.incoming, edge.TargetID, edge.ID)
		return nil
	})
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	kg.log.Debug("Edge created", zap.String("id", edge.ID), zap.String("source", edge.SourceID), zap.String("target", edge.TargetID))
	return edge, nil
}

func indexEdge(index map[string]*btree.Set[string], nodeID, edgeID string) {
	set, ok := index[nodeID]
	if !ok {
		set = &btree.Set[string]{}
		index[nodeID] = set
	}
	set.Insert(edgeID)
}

// GetEdge retrieves a live edge by its ID, or nil.
func (kg *InMemoryKG) GetEdge(ctx context.Context, id string) (*schemas.GraphEdge, error) {
	var out *schemas.GraphEdge
	err := kg.read(ctx, "get_edge", func(context.Context) error {
		if e, ok := kg.liveEdge(id); ok {
			c := cloneEdge(e)
			out = &c
		}
		return nil
	})
	return out, err
}

// DeleteEdge soft-deletes one edge.
func (kg *InMemoryKG) DeleteEdge(ctx context.Context, id string) error {
	return kg.write(ctx, "delete_edge", func() error {
		e, ok := kg.liveEdge(id)
		if !ok {
			return &schemas.EdgeNotFoundError{ID: id}
		}
		now := timestamp()
		e.DeletedAt = &now
		kg.edges.Set(id, e)
		return nil
	})
}

// GetNodeEdges retrieves the live edges incident to a node, ordered by edge id.
func (kg *InMemoryKG) GetNodeEdges(ctx context.Context, nodeID string, direction schemas.Direction) ([]schemas.GraphEdge, error) {
	if direction == "" {
		direction = schemas.DirectionOutgoing
	}
	if !direction.Valid() {
		return nil, &schemas.TraversalError{Param: "direction", Reason: fmt.Sprintf("unknown direction %q", direction)}
	}
	var out []schemas.GraphEdge
	err := kg.read(ctx, "get_node_edges", func(context.Context) error {
		if _, ok := kg.liveNode(nodeID); !ok {
			return &schemas.NodeNotFoundError{ID: nodeID}
		}
		ids := btree.Set[string]{}
		if direction != schemas.DirectionIncoming {
			if set, ok := kg.outgoing[nodeID]; ok {
				set.Scan(func(id string) bool { ids.Insert(id); return true })
			}
		}
		if direction != schemas.DirectionOutgoing {
			if set, ok := kg.incoming[nodeID]; ok {
				set.Scan(func(id string) bool { ids.Insert(id); return true })
			}
		}
		out = make([]schemas.GraphEdge, 0, ids.Len())
		ids.Scan(func(id string) bool {
			if e, ok := kg.liveEdge(id); ok {
				out = append(out, cloneEdge(e))
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- Traversal --

// step is one hop from the current node over a live edge.
type step struct {
	edge schemas.GraphEdge
	next string
}

// steps lists the live hops out of nodeID in the given direction, in edge-id
// order. Assumes the caller holds the lock.
func (kg *InMemoryKG) steps(nodeID string, direction schemas.Direction, allowed map[string]struct{}) []step {
	var out []step
	visit := func(index map[string]*btree.Set[string], forward bool) {
		set, ok := index[nodeID]
		if !ok {
			return
		}
		set.Scan(func(edgeID string) bool {
			e, ok := kg.liveEdge(edgeID)
			if !ok {
				return true
			}
			if allowed != nil {
				if _, ok := allowed[e.EdgeType]; !ok {
					return true
				}
			}
			next := e.TargetID
			if !forward {
				next = e.SourceID
			}
			if _, ok := kg.liveNode(next); ok {
				out = append(out, step{edge: e, next: next})
			}
			return true
		})
	}
	if direction != schemas.DirectionIncoming {
		visit(kg.outgoing, true)
	}
	if direction != schemas.DirectionOutgoing {
		visit(kg.incoming, false)
	}
	return out
}

// Traverse performs a level-by-level breadth-first search from startID.
func (kg *InMemoryKG) Traverse(ctx context.Context, startID string, params schemas.TraversalParams) ([]schemas.GraphNode, error) {
	params, err := normalizeTraversal(params)
	if err != nil {
		return nil, err
	}
	var out []schemas.GraphNode
	err = kg.read(ctx, "traverse", func(ctx context.Context) error {
		if _, ok := kg.liveNode(startID); !ok {
			return &schemas.NodeNotFoundError{ID: startID}
		}
		var allowed map[string]struct{}
		if len(params.EdgeTypes) > 0 {
			allowed = make(map[string]struct{}, len(params.EdgeTypes))
			for _, t := range params.EdgeTypes {
				allowed[t] = struct{}{}
			}
		}

		visited := map[string]struct{}{startID: {}}
		frontier := []string{startID}
		var found []discovered
		for depth := 1; depth <= params.MaxDepth && len(frontier) > 0; depth++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []string
			for _, id := range frontier {
				for _, s := range kg.steps(id, params.Direction, allowed) {
					if _, seen := visited[s.next]; seen {
						continue
					}
					visited[s.next] = struct{}{}
					n, _ := kg.liveNode(s.next)
					found = append(found, discovered{node: cloneNode(n), depth: depth})
					next = append(next, s.next)
				}
			}
			frontier = next
		}
		out = orderDiscovered(found, params.NodeLabels, params.Limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collectPaths enumerates simple outgoing paths from startID to endID with at
// most maxDepth edges. Assumes the caller holds the lock.
func (kg *InMemoryKG) collectPaths(ctx context.Context, startID, endID string, maxDepth int) ([]pathIDs, error) {
	var (
		paths   []pathIDs
		nodeSeq = []string{startID}
		edgeSeq []string
		onPath  = map[string]struct{}{startID: {}}
	)
	var walk func(current string) error
	walk = func(current string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if current == endID && len(edgeSeq) > 0 {
			paths = append(paths, pathIDs{
				NodeIDs: append([]string(nil), nodeSeq...),
				EdgeIDs: append([]string(nil), edgeSeq...),
			})
			return nil
		}
		if len(edgeSeq) == maxDepth {
			return nil
		}
		for _, s := range kg.steps(current, schemas.DirectionOutgoing, nil) {
			if _, seen := onPath[s.next]; seen {
				continue
			}
			onPath[s.next] = struct{}{}
			nodeSeq = append(nodeSeq, s.next)
			edgeSeq = append(edgeSeq, s.edge.ID)
			if err := walk(s.next); err != nil {
				return err
			}
			nodeSeq = nodeSeq[:len(nodeSeq)-1]
			edgeSeq = edgeSeq[:len(edgeSeq)-1]
			delete(onPath, s.next)
		}
		return nil
	}
	if err := walk(startID); err != nil {
		return nil, err
	}
	return paths, nil
}

// hydrate resolves path skeletons into entities. Assumes the caller holds the lock.
func (kg *InMemoryKG) hydrate(ids []pathIDs) []schemas.Path {
	nodes := make(map[string]schemas.GraphNode)
	edges := make(map[string]schemas.GraphEdge)
	nodeIDs, edgeIDs := uniqueIDs(ids)
	for _, id := range nodeIDs {
		if n, ok := kg.liveNode(id); ok {
			nodes[id] = cloneNode(n)
		}
	}
	for _, id := range edgeIDs {
		if e, ok := kg.liveEdge(id); ok {
			edges[id] = cloneEdge(e)
		}
	}
	out := make([]schemas.Path, 0, len(ids))
	for _, pid := range ids {
		if p, ok := assemblePath(pid, nodes, edges); ok {
			out = append(out, p)
		}
	}
	return out
}

// FindShortestPath returns the fewest-edge outgoing path from startID to endID.
func (kg *InMemoryKG) FindShortestPath(ctx context.Context, startID, endID string, maxDepth int) (*schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}
	var out *schemas.Path
	err := kg.read(ctx, "find_shortest_path", func(ctx context.Context) error {
		if _, ok := kg.liveNode(startID); !ok {
			return nil
		}
		if startID == endID {
			out = kg.trivialPath(startID)
			return nil
		}
		candidates, err := kg.collectPaths(ctx, startID, endID, maxDepth)
		if err != nil {
			return err
		}
		if best, ok := pickShortest(candidates); ok {
			if paths := kg.hydrate([]pathIDs{best}); len(paths) == 1 {
				out = &paths[0]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindAllPaths returns every simple outgoing path from startID to endID.
func (kg *InMemoryKG) FindAllPaths(ctx context.Context, startID, endID string, maxDepth, limit int) ([]schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}
	out := []schemas.Path{}
	err := kg.read(ctx, "find_all_paths", func(ctx context.Context) error {
		if _, ok := kg.liveNode(startID); !ok {
			return nil
		}
		if startID == endID {
			out = append(out, *kg.trivialPath(startID))
			return nil
		}
		ids, err := kg.collectPaths(ctx, startID, endID, maxDepth)
		if err != nil {
			return err
		}
		out = kg.hydrate(orderPaths(ids, limit))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// trivialPath is the zero-length path at a live node. Assumes the caller holds the lock.
func (kg *InMemoryKG) trivialPath(id string) *schemas.Path {
	n, _ := kg.liveNode(id)
	return &schemas.Path{Nodes: []schemas.GraphNode{cloneNode(n)}, Edges: []schemas.GraphEdge{}}
}

// cloneNode detaches the mutable parts of n from the stored copy.
func cloneNode(n schemas.GraphNode) schemas.GraphNode {
	n.Labels = append([]string(nil), n.Labels...)
	n.Properties = n.Properties.Clone()
	if n.DeletedAt != nil {
		t := *n.DeletedAt
		n.DeletedAt = &t
	}
	return n
}

// cloneEdge detaches the mutable parts of e from the stored copy.
func cloneEdge(e schemas.GraphEdge) schemas.GraphEdge {
	e.Properties = e.Properties.Clone()
	e.Weight = copyFloat(e.Weight)
	e.Confidence = copyFloat(e.Confidence)
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		e.DeletedAt = &t
	}
	return e
}
