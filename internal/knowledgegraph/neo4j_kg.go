package knowledgegraph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
)

type driverHandle struct {
	driver graphDriver
}

// Neo4jKG implements GraphBackend on Neo4j. Every node carries the base
// GraphNode label next to its own; traversals are variable-length patterns.
type Neo4jKG struct {
	cfg    config.Neo4jConfig
	dial   func(ctx context.Context) (graphDriver, error)
	handle atomic.Pointer[driverHandle]
	connMu sync.Mutex
	runner *opRunner
	log    *zap.Logger
}

var _ schemas.GraphBackend = (*Neo4jKG)(nil)

// NewNeo4jKG creates a backend that opens its own driver on Connect.
func NewNeo4jKG(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *Neo4jKG {
	n := newNeo4jKG(cfg, logger, metrics)
	n.dial = func(context.Context) (graphDriver, error) {
		return newNeo4jDriver(cfg.Neo4j)
	}
	return n
}

// newNeo4jKGWithDriver wires an existing driver, such as a scripted fake.
func newNeo4jKGWithDriver(driver graphDriver, cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *Neo4jKG {
	n := newNeo4jKG(cfg, logger, metrics)
	n.dial = func(context.Context) (graphDriver, error) { return driver, nil }
	return n
}

func newNeo4jKG(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *Neo4jKG {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("neo4j_kg")
	runner := newOpRunner(schemas.BackendNeo4j, log, metrics, cfg.Retry, cfg.QueryTimeout)
	runner.safeToRetry = neo4jSafeToRetry
	runner.isConnection = neo4jIsConnection
	return &Neo4jKG{cfg: cfg.Neo4j, runner: runner, log: log}
}

// Backend identifies the implementation.
func (n *Neo4jKG) Backend() schemas.BackendType { return schemas.BackendNeo4j }

// Connect opens the driver and verifies it can reach the server.
func (n *Neo4jKG) Connect(ctx context.Context) error {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	if n.handle.Load() != nil {
		return nil
	}

	var driver graphDriver
	err := n.runner.do(ctx, "connect", func(ctx context.Context) error {
		candidate, err := n.dial(ctx)
		if err != nil {
			return err
		}
		if err := candidate.VerifyConnectivity(ctx); err != nil {
			_ = candidate.Close(ctx)
			return fmt.Errorf("failed to verify neo4j connectivity: %w", err)
		}
		driver = candidate
		return nil
	})
	if err != nil {
		return err
	}
	n.handle.Store(&driverHandle{driver: driver})
	n.log.Info("Connected to Neo4j graph store")

	if n.cfg.AutoCreateSchema {
		if err := n.EnsureSchema(ctx); err != nil {
			n.handle.Store(nil)
			_ = driver.Close(ctx)
			return err
		}
	}
	return nil
}

// Disconnect closes the driver. Calling it again is a no-op.
func (n *Neo4jKG) Disconnect(ctx context.Context) error {
	n.connMu.Lock()
	defer n.connMu.Unlock()
	h := n.handle.Swap(nil)
	if h == nil {
		return nil
	}
	if err := h.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	n.log.Info("Disconnected from Neo4j graph store")
	return nil
}

// EnsureSchema creates the id constraint and soft-delete index.
func (n *Neo4jKG) EnsureSchema(ctx context.Context) error {
	return n.runner.do(ctx, "ensure_schema", func(ctx context.Context) error {
		d, err := n.driver("ensure_schema")
		if err != nil {
			return err
		}
		// Schema statements cannot share a transaction with each other.
		for i, stmt := range neo4jSchema {
			err := d.ExecuteWrite(ctx, func(tx cypherRunner) error {
				_, err := tx.Run(ctx, stmt, nil)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}

func (n *Neo4jKG) driver(op string) (graphDriver, error) {
	h := n.handle.Load()
	if h == nil {
		return nil, notConnected(schemas.BackendNeo4j, op)
	}
	return h.driver, nil
}

func (n *Neo4jKG) read(ctx context.Context, op string, work func(ctx context.Context, tx cypherRunner) error) error {
	return n.runner.do(ctx, op, func(ctx context.Context) error {
		d, err := n.driver(op)
		if err != nil {
			return err
		}
		return d.ExecuteRead(ctx, func(tx cypherRunner) error { return work(ctx, tx) })
	})
}

func (n *Neo4jKG) write(ctx context.Context, op string, work func(ctx context.Context, tx cypherRunner) error) error {
	return n.runner.do(ctx, op, func(ctx context.Context) error {
		d, err := n.driver(op)
		if err != nil {
			return err
		}
		err = d.ExecuteWrite(ctx, func(tx cypherRunner) error { return work(ctx, tx) })
		if isConstraintViolation(err) {
			return &schemas.ValidationError{Field: "id", Reason: "already exists"}
		}
		return err
	})
}

// -- Nodes --

// CreateNode creates a node carrying the base label and its own labels.
func (n *Neo4jKG) CreateNode(ctx context.Context, input schemas.NodeInput) (schemas.GraphNode, error) {
	node, err := prepareNode(input, timestamp())
	if err != nil {
		return schemas.GraphNode{}, err
	}
	row, err := nodeRow(node)
	if err != nil {
		return schemas.GraphNode{}, err
	}

	err = n.write(ctx, "create_node", func(ctx context.Context, tx cypherRunner) error {
		if err := rejectTakenNodeIDs(ctx, tx, []string{node.ID}); err != nil {
			return err
		}
		_, err := tx.Run(ctx, createNodesCypher(node.Labels), map[string]any{"rows": []any{row}})
		return err
	})
	if err != nil {
		return schemas.GraphNode{}, err
	}
	n.log.Debug("Node created", zap.String("id", node.ID), zap.Strings("labels", node.Labels))
	return node, nil
}

// GetNode returns the live node with the given id, or nil.
func (n *Neo4jKG) GetNode(ctx context.Context, id string) (*schemas.GraphNode, error) {
	var node *schemas.GraphNode
	err := n.read(ctx, "get_node", func(ctx context.Context, tx cypherRunner) error {
		found, err := fetchNode(ctx, tx, id)
		node = found
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpdateNode reads, merges and writes the node in one write transaction.
func (n *Neo4jKG) UpdateNode(ctx context.Context, id string, update schemas.NodeUpdate) (*schemas.GraphNode, error) {
	update, err := validateUpdate(update)
	if err != nil {
		return nil, err
	}

	var updated schemas.GraphNode
	err = n.write(ctx, "update_node", func(ctx context.Context, tx cypherRunner) error {
		current, err := fetchNode(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return &schemas.NodeNotFoundError{ID: id}
		}
		node := *current
		oldLabels := node.Labels
		applyUpdate(&node, update, timestamp())
		props, err := schemas.EncodeProperties(node.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal node properties: %w", err)
		}
		_, err = tx.Run(ctx, updateNodeCypher(oldLabels, node.Labels), map[string]any{
			"id":         id,
			"properties": string(props),
			"updated_at": node.UpdatedAt,
		})
		if err != nil {
			return err
		}
		updated = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteNode soft-deletes the node and its live relationships in one statement.
func (n *Neo4jKG) DeleteNode(ctx context.Context, id string) error {
	now := timestamp()
	return n.write(ctx, "delete_node", func(ctx context.Context, tx cypherRunner) error {
		rows, err := tx.Run(ctx, cypherDeleteNode, map[string]any{"id": id, "now": now})
		if err != nil {
			return err
		}
		if len(rows) == 0 || asInt(rows[0]["nodes"]) == 0 {
			return &schemas.NodeNotFoundError{ID: id}
		}
		n.log.Debug("Node soft-deleted", zap.String("id", id), zap.Int64("edges", asInt(rows[0]["edges"])))
		return nil
	})
}

// BatchCreateNodes creates every node in one write transaction, one UNWIND
// statement per distinct label set.
func (n *Neo4jKG) BatchCreateNodes(ctx context.Context, inputs []schemas.NodeInput) ([]schemas.GraphNode, error) {
	nodes, err := prepareBatch(inputs, timestamp())
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return []schemas.GraphNode{}, nil
	}

	ids := make([]string, 0, len(nodes))
	groups := make(map[string][]any)
	groupLabels := make(map[string][]string)
	for _, node := range nodes {
		row, err := nodeRow(node)
		if err != nil {
			return nil, err
		}
		key := strings.Join(node.Labels, ":")
		groups[key] = append(groups[key], row)
		groupLabels[key] = node.Labels
		ids = append(ids, node.ID)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err = n.write(ctx, "batch_create_nodes", func(ctx context.Context, tx cypherRunner) error {
		if err := rejectTakenNodeIDs(ctx, tx, ids); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := tx.Run(ctx, createNodesCypher(groupLabels[k]), map[string]any{"rows": groups[k]}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.log.Debug("Node batch created", zap.Int("count", len(nodes)), zap.Int("label_sets", len(keys)))
	return nodes, nil
}

// -- Edges --

// CreateEdge creates a relationship between two live nodes.
func (n *Neo4jKG) CreateEdge(ctx context.Context, input schemas.EdgeInput) (schemas.GraphEdge, error) {
	edge, err := prepareEdge(input, timestamp())
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	props, err := schemas.EncodeProperties(edge.Properties)
	if err != nil {
		return schemas.GraphEdge{}, fmt.Errorf("failed to marshal edge properties: %w", err)
	}

	err = n.write(ctx, "create_edge", func(ctx context.Context, tx cypherRunner) error {
		rows, err := tx.Run(ctx, cypherLiveEndpoints, map[string]any{"source_id": edge.SourceID, "target_id": edge.TargetID})
		if err != nil {
			return err
		}
		if len(rows) == 0 || !asBool(rows[0]["source"]) {
			return &schemas.NodeNotFoundError{ID: edge.SourceID}
		}
		if !asBool(rows[0]["target"]) {
			return &schemas.NodeNotFoundError{ID: edge.TargetID}
		}

		rows, err = tx.Run(ctx, cypherEdgeIDTaken, map[string]any{"id": edge.ID})
		if err != nil {
			return err
		}
		if len(rows) > 0 && asInt(rows[0]["found"]) > 0 {
			return &schemas.ValidationError{Field: "id", Reason: fmt.Sprintf("'%s' already exists", edge.ID)}
		}

		_, err = tx.Run(ctx, createEdgeCypher(edge.EdgeType), map[string]any{
			"id":         edge.ID,
			"source_id":  edge.SourceID,
			"target_id":  edge.TargetID,
			"properties": string(props),
			"weight":     optionalFloat(edge.Weight),
			"confidence": optionalFloat(edge.Confidence),
			"created_at": edge.CreatedAt,
		})
		return err
	})
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	n.log.Debug("Edge created", zap.String("id", edge.ID), zap.String("source", edge.SourceID), zap.String("target", edge.TargetID))
	return edge, nil
}

// GetEdge returns the live edge with the given id, or nil.
func (n *Neo4jKG) GetEdge(ctx context.Context, id string) (*schemas.GraphEdge, error) {
	var edge *schemas.GraphEdge
	err := n.read(ctx, "get_edge", func(ctx context.Context, tx cypherRunner) error {
		rows, err := tx.Run(ctx, cypherGetEdge, map[string]any{"id": id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			edge = nil
			return nil
		}
		e, err := decodeEdge(rows[0])
		if err != nil {
			return err
		}
		edge = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteEdge soft-deletes one relationship.
func (n *Neo4jKG) DeleteEdge(ctx context.Context, id string) error {
	now := timestamp()
	return n.write(ctx, "delete_edge", func(ctx context.Context, tx cypherRunner) error {
		rows, err := tx.Run(ctx, cypherDeleteEdge, map[string]any{"id": id, "now": now})
		if err != nil {
			return err
		}
		if len(rows) == 0 || asInt(rows[0]["deleted"]) == 0 {
			return &schemas.EdgeNotFoundError{ID: id}
		}
		return nil
	})
}

// GetNodeEdges lists the live relationships incident to a node.
func (n *Neo4jKG) GetNodeEdges(ctx context.Context, nodeID string, direction schemas.Direction) ([]schemas.GraphEdge, error) {
	if direction == "" {
		direction = schemas.DirectionOutgoing
	}
	if !direction.Valid() {
		return nil, &schemas.TraversalError{Param: "direction", Reason: fmt.Sprintf("unknown direction %q", direction)}
	}

	var edges []schemas.GraphEdge
	err := n.read(ctx, "get_node_edges", func(ctx context.Context, tx cypherRunner) error {
		if err := requireLiveNode(ctx, tx, nodeID); err != nil {
			return err
		}
		rows, err := tx.Run(ctx, nodeEdgesCypher(direction), map[string]any{"id": nodeID})
		if err != nil {
			return err
		}
		found, err := decodeEdges(rows)
		if err != nil {
			return err
		}
		sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
		edges = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// -- Traversal --

// Traverse expands a variable-length pattern and keeps each node's minimum depth.
func (n *Neo4jKG) Traverse(ctx context.Context, startID string, params schemas.TraversalParams) ([]schemas.GraphNode, error) {
	params, err := normalizeTraversal(params)
	if err != nil {
		return nil, err
	}

	var result []schemas.GraphNode
	err = n.read(ctx, "traverse", func(ctx context.Context, tx cypherRunner) error {
		if err := requireLiveNode(ctx, tx, startID); err != nil {
			return err
		}
		if params.MaxDepth == 0 {
			result = []schemas.GraphNode{}
			return nil
		}
		rows, err := tx.Run(ctx, traverseCypher(params.Direction, params.MaxDepth), map[string]any{
			"start":  startID,
			"types":  nilIfEmpty(params.EdgeTypes),
			"labels": nilIfEmpty(params.NodeLabels),
		})
		if err != nil {
			return err
		}
		found := make([]discovered, 0, len(rows))
		for _, row := range rows {
			node, err := decodeNode(row)
			if err != nil {
				return err
			}
			found = append(found, discovered{node: node, depth: int(asInt(row["depth"]))})
		}
		result = orderDiscovered(found, params.NodeLabels, params.Limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindShortestPath deepens one hop at a time and stops at the first depth
// that reaches endID.
func (n *Neo4jKG) FindShortestPath(ctx context.Context, startID, endID string, maxDepth int) (*schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}

	var result *schemas.Path
	err := n.read(ctx, "find_shortest_path", func(ctx context.Context, tx cypherRunner) error {
		result = nil
		if startID == endID {
			trivial, err := trivialNeo4jPath(ctx, tx, startID)
			result = trivial
			return err
		}
		for depth := 1; depth <= maxDepth; depth++ {
			candidates, err := runPathQuery(ctx, tx, pathsCypher(depth, depth), startID, endID)
			if err != nil {
				return err
			}
			for len(candidates) > 0 {
				best, _ := pickShortest(candidates)
				paths, err := hydrateNeo4jPaths(ctx, tx, []pathIDs{best})
				if err != nil {
					return err
				}
				if len(paths) == 1 {
					result = &paths[0]
					return nil
				}
				candidates = removeCandidate(candidates, best)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindAllPaths returns every simple outgoing path within maxDepth.
func (n *Neo4jKG) FindAllPaths(ctx context.Context, startID, endID string, maxDepth, limit int) ([]schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}

	var result []schemas.Path
	err := n.read(ctx, "find_all_paths", func(ctx context.Context, tx cypherRunner) error {
		result = []schemas.Path{}
		if startID == endID {
			trivial, err := trivialNeo4jPath(ctx, tx, startID)
			if err != nil {
				return err
			}
			if trivial != nil {
				result = append(result, *trivial)
			}
			return nil
		}
		if maxDepth == 0 {
			return nil
		}
		ids, err := runPathQuery(ctx, tx, pathsCypher(1, maxDepth), startID, endID)
		if err != nil {
			return err
		}
		paths, err := hydrateNeo4jPaths(ctx, tx, orderPaths(ids, 0))
		if err != nil {
			return err
		}
		if limit > 0 && len(paths) > limit {
			paths = paths[:limit]
		}
		result = paths
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// -- Transaction helpers --

func fetchNode(ctx context.Context, tx cypherRunner, id string) (*schemas.GraphNode, error) {
	rows, err := tx.Run(ctx, cypherGetNode, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	node, err := decodeNode(rows[0])
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func requireLiveNode(ctx context.Context, tx cypherRunner, id string) error {
	rows, err := tx.Run(ctx, cypherNodeExists, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if len(rows) == 0 || asInt(rows[0]["found"]) == 0 {
		return &schemas.NodeNotFoundError{ID: id}
	}
	return nil
}

// rejectTakenNodeIDs fails when any id is already used, including by a
// soft-deleted node.
func rejectTakenNodeIDs(ctx context.Context, tx cypherRunner, ids []string) error {
	rows, err := tx.Run(ctx, cypherNodeIDTaken, map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return &schemas.ValidationError{Field: "id", Reason: fmt.Sprintf("'%s' already exists", asString(rows[0]["id"]))}
	}
	return nil
}

func trivialNeo4jPath(ctx context.Context, tx cypherRunner, id string) (*schemas.Path, error) {
	node, err := fetchNode(ctx, tx, id)
	if err != nil || node == nil {
		return nil, err
	}
	return &schemas.Path{Nodes: []schemas.GraphNode{*node}, Edges: []schemas.GraphEdge{}}, nil
}

func runPathQuery(ctx context.Context, tx cypherRunner, cypher, startID, endID string) ([]pathIDs, error) {
	rows, err := tx.Run(ctx, cypher, map[string]any{"start": startID, "end": endID})
	if err != nil {
		return nil, err
	}
	out := make([]pathIDs, 0, len(rows))
	for _, row := range rows {
		out = append(out, pathIDs{NodeIDs: asStrings(row["node_ids"]), EdgeIDs: asStrings(row["edge_ids"])})
	}
	return out, nil
}

func hydrateNeo4jPaths(ctx context.Context, tx cypherRunner, ids []pathIDs) ([]schemas.Path, error) {
	out := make([]schemas.Path, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	nodeIDs, edgeIDs := uniqueIDs(ids)

	rows, err := tx.Run(ctx, cypherNodesByIDs, map[string]any{"ids": nodeIDs})
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]schemas.GraphNode, len(rows))
	for _, row := range rows {
		node, err := decodeNode(row)
		if err != nil {
			return nil, err
		}
		nodes[node.ID] = node
	}

	rows, err = tx.Run(ctx, cypherEdgesByIDs, map[string]any{"ids": edgeIDs, "node_ids": nodeIDs})
	if err != nil {
		return nil, err
	}
	edgeList, err := decodeEdges(rows)
	if err != nil {
		return nil, err
	}
	edges := make(map[string]schemas.GraphEdge, len(edgeList))
	for _, e := range edgeList {
		edges[e.ID] = e
	}

	for _, pid := range ids {
		if p, ok := assemblePath(pid, nodes, edges); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// -- Record decoding --

// nodeRow is the UNWIND row for one node. Properties are stored as a JSON
// string because Neo4j properties cannot hold nested maps.
func nodeRow(node schemas.GraphNode) (map[string]any, error) {
	props, err := schemas.EncodeProperties(node.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties of node '%s': %w", node.ID, err)
	}
	return map[string]any{
		"id":         node.ID,
		"properties": string(props),
		"created_at": node.CreatedAt,
		"updated_at": node.UpdatedAt,
	}, nil
}

func decodeNode(row map[string]any) (schemas.GraphNode, error) {
	props, err := schemas.DecodeProperties([]byte(asString(row["properties"])))
	if err != nil {
		return schemas.GraphNode{}, fmt.Errorf("failed to unmarshal node properties: %w", err)
	}
	labels := asStrings(row["labels"])
	sort.Strings(labels)
	return schemas.GraphNode{
		ID:         asString(row["id"]),
		Labels:     labels,
		Properties: props,
		CreatedAt:  asTime(row["created_at"]),
		UpdatedAt:  asTime(row["updated_at"]),
		DeletedAt:  asTimePtr(row["deleted_at"]),
	}, nil
}

func decodeEdge(row map[string]any) (schemas.GraphEdge, error) {
	props, err := schemas.DecodeProperties([]byte(asString(row["properties"])))
	if err != nil {
		return schemas.GraphEdge{}, fmt.Errorf("failed to unmarshal edge properties: %w", err)
	}
	return schemas.GraphEdge{
		ID:         asString(row["id"]),
		SourceID:   asString(row["source_id"]),
		TargetID:   asString(row["target_id"]),
		EdgeType:   asString(row["edge_type"]),
		Properties: props,
		Weight:     asFloatPtr(row["weight"]),
		Confidence: asFloatPtr(row["confidence"]),
		CreatedAt:  asTime(row["created_at"]),
		DeletedAt:  asTimePtr(row["deleted_at"]),
	}, nil
}

func decodeEdges(rows []map[string]any) ([]schemas.GraphEdge, error) {
	edges := make([]schemas.GraphEdge, 0, len(rows))
	for _, row := range rows {
		e, err := decodeEdge(row)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t.UTC()
}

func asTimePtr(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}

func asFloatPtr(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}

// optionalFloat passes nil through as a Cypher null.
func optionalFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
