package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
	"go.uber.org/zap"
)

// pgUniqueViolation is the SQLSTATE for a duplicate primary key.
const pgUniqueViolation = "23505"

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// poolHandle lets the current pool be swapped atomically.
type poolHandle struct {
	pool DBPool
}

// PostgresKG implements GraphBackend on PostgreSQL. Traversals and path
// searches are recursive CTEs; properties live in JSONB columns.
type PostgresKG struct {
	cfg    config.PostgresConfig
	dial   func(ctx context.Context) (DBPool, error)
	handle atomic.Pointer[poolHandle]
	connMu sync.Mutex // serializes Connect and Disconnect
	runner *opRunner
	log    *zap.Logger
}

// Ensures PostgresKG correctly implements the GraphBackend interface at compile time.
var _ schemas.GraphBackend = (*PostgresKG)(nil)

// NewPostgresKG creates a backend that dials its own pgxpool on Connect.
func NewPostgresKG(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *PostgresKG {
	p := newPostgresKG(cfg, logger, metrics)
	p.dial = func(ctx context.Context) (DBPool, error) {
		return newPgxPool(ctx, cfg.Postgres)
	}
	return p
}

// NewPostgresKGWithPool creates a backend over an existing pool, such as a
// pgxmock pool in tests. Connect still pings it.
func NewPostgresKGWithPool(pool DBPool, cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *PostgresKG {
	p := newPostgresKG(cfg, logger, metrics)
	p.dial = func(context.Context) (DBPool, error) { return pool, nil }
	return p
}

func newPostgresKG(cfg config.GraphConfig, logger *zap.Logger, metrics *observability.GraphMetrics) *PostgresKG {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("postgres_kg")
	runner := newOpRunner(schemas.BackendPostgres, log, metrics, cfg.Retry, cfg.QueryTimeout)
	runner.safeToRetry = pgSafeToRetry
	runner.isConnection = pgIsConnection
	return &PostgresKG{cfg: cfg.Postgres, runner: runner, log: log}
}

// newPgxPool builds a tuned pgxpool from configuration.
func newPgxPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return pool, nil
}

// pgSafeToRetry reports failures where pgx guarantees no bytes reached the server.
func pgSafeToRetry(err error) bool {
	var connectErr *pgconn.ConnectError
	return pgconn.SafeToRetry(err) || errors.As(err, &connectErr)
}

// pgIsConnection reports failures caused by a closed transaction or pool. pgxpool
// surfaces the pool sentinel from puddle unwrapped.
func pgIsConnection(err error) bool {
	return errors.Is(err, pgx.ErrTxClosed) || errors.Is(err, puddle.ErrClosedPool)
}

// Backend identifies the implementation.
func (p *PostgresKG) Backend() schemas.BackendType { return schemas.BackendPostgres }

// Connect dials and pings the pool, creating the schema when configured to.
func (p *PostgresKG) Connect(ctx context.Context) error {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.handle.Load() != nil {
		return nil
	}

	var pool DBPool
	err := p.runner.do(ctx, "connect", func(ctx context.Context) error {
		candidate, err := p.dial(ctx)
		if err != nil {
			return err
		}
		if err := candidate.Ping(ctx); err != nil {
			candidate.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = candidate
		return nil
	})
	if err != nil {
		return err
	}
	p.handle.Store(&poolHandle{pool: pool})
	p.log.Info("Connected to PostgreSQL graph store")

	if p.cfg.AutoCreateSchema {
		if err := p.EnsureSchema(ctx); err != nil {
			p.handle.Store(nil)
			pool.Close()
			return err
		}
	}
	return nil
}

// Disconnect closes the pool. Calling it again is a no-op.
func (p *PostgresKG) Disconnect(ctx context.Context) error {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	h := p.handle.Swap(nil)
	if h == nil {
		return nil
	}
	h.pool.Close()
	p.log.Info("Disconnected from PostgreSQL graph store")
	return nil
}

// db returns the live pool or a not-connected error.
func (p *PostgresKG) db(op string) (DBPool, error) {
	h := p.handle.Load()
	if h == nil {
		return nil, notConnected(schemas.BackendPostgres, op)
	}
	return h.pool, nil
}

// inTx runs fn inside a transaction, committing on success.
func (p *PostgresKG) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	db, err := p.db(op)
	if err != nil {
		return err
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			p.log.Error("Failed to rollback transaction", zap.String("operation", op), zap.Error(rollbackErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// -- Nodes --

// CreateNode inserts a new node.
func (p *PostgresKG) CreateNode(ctx context.Context, input schemas.NodeInput) (schemas.GraphNode, error) {
	node, err := prepareNode(input, timestamp())
	if err != nil {
		return schemas.GraphNode{}, err
	}
	props, err := schemas.EncodeProperties(node.Properties)
	if err != nil {
		return schemas.GraphNode{}, fmt.Errorf("failed to marshal node properties: %w", err)
	}

	err = p.runner.do(ctx, "create_node", func(ctx context.Context) error {
		db, err := p.db("create_node")
		if err != nil {
			return err
		}
		_, err = db.Exec(ctx, sqlInsertNode, node.ID, node.Labels, string(props), node.CreatedAt, node.UpdatedAt)
		return mapPgWriteError(err, node.ID)
	})
	if err != nil {
		return schemas.GraphNode{}, err
	}
	p.log.Debug("Node created", zap.String("id", node.ID), zap.Strings("labels", node.Labels))
	return node, nil
}

// GetNode returns the live node with the given id, or nil.
func (p *PostgresKG) GetNode(ctx context.Context, id string) (*schemas.GraphNode, error) {
	var node *schemas.GraphNode
	err := p.runner.do(ctx, "get_node", func(ctx context.Context) error {
		db, err := p.db("get_node")
		if err != nil {
			return err
		}
		n, err := scanNode(db.QueryRow(ctx, sqlGetNode, id))
		if errors.Is(err, pgx.ErrNoRows) {
			node = nil
			return nil
		}
		if err != nil {
			return err
		}
		node = &n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpdateNode locks the row, applies the update in Go and writes it back.
func (p *PostgresKG) UpdateNode(ctx context.Context, id string, update schemas.NodeUpdate) (*schemas.GraphNode, error) {
	update, err := validateUpdate(update)
	if err != nil {
		return nil, err
	}

	var updated schemas.GraphNode
	err = p.runner.do(ctx, "update_node", func(ctx context.Context) error {
		return p.inTx(ctx, "update_node", func(tx pgx.Tx) error {
			node, err := scanNode(tx.QueryRow(ctx, sqlLockNode, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return &schemas.NodeNotFoundError{ID: id}
			}
			if err != nil {
				return err
			}
			applyUpdate(&node, update, timestamp())
			props, err := schemas.EncodeProperties(node.Properties)
			if err != nil {
				return fmt.Errorf("failed to marshal node properties: %w", err)
			}
			if _, err := tx.Exec(ctx, sqlUpdateNode, node.ID, node.Labels, string(props), node.UpdatedAt); err != nil {
				return err
			}
			updated = node
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteNode soft-deletes the node and its live incident edges atomically.
func (p *PostgresKG) DeleteNode(ctx context.Context, id string) error {
	now := timestamp()
	return p.runner.do(ctx, "delete_node", func(ctx context.Context) error {
		return p.inTx(ctx, "delete_node", func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, sqlDeleteNode, id, now)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return &schemas.NodeNotFoundError{ID: id}
			}
			tag, err = tx.Exec(ctx, sqlDeleteIncidentEdges, id, now)
			if err != nil {
				return err
			}
			p.log.Debug("Node soft-deleted", zap.String("id", id), zap.Int64("edges", tag.RowsAffected()))
			return nil
		})
	})
}

// BatchCreateNodes inserts every node in one transaction using chunked
// multi-row INSERTs.
func (p *PostgresKG) BatchCreateNodes(ctx context.Context, inputs []schemas.NodeInput) ([]schemas.GraphNode, error) {
	nodes, err := prepareBatch(inputs, timestamp())
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return []schemas.GraphNode{}, nil
	}

	args := make([]any, 0, len(nodes)*5)
	for _, n := range nodes {
		props, err := schemas.EncodeProperties(n.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal properties of node '%s': %w", n.ID, err)
		}
		args = append(args, n.ID, n.Labels, string(props), n.CreatedAt, n.UpdatedAt)
	}

	err = p.runner.do(ctx, "batch_create_nodes", func(ctx context.Context) error {
		return p.inTx(ctx, "batch_create_nodes", func(tx pgx.Tx) error {
			for start := 0; start < len(nodes); start += batchChunkSize {
				end := min(start+batchChunkSize, len(nodes))
				tag, err := tx.Exec(ctx, batchInsertNodesSQL(end-start), args[start*5:end*5]...)
				if err != nil {
					return mapPgWriteError(err, "")
				}
				if int(tag.RowsAffected()) != end-start {
					return fmt.Errorf("mismatch in inserted nodes count: expected %d, got %d", end-start, tag.RowsAffected())
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug("Node batch created", zap.Int("count", len(nodes)))
	return nodes, nil
}

// -- Edges --

// CreateEdge inserts an edge after share-locking both live endpoints.
func (p *PostgresKG) CreateEdge(ctx context.Context, input schemas.EdgeInput) (schemas.GraphEdge, error) {
	edge, err := prepareEdge(input, timestamp())
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	props, err := schemas.EncodeProperties(edge.Properties)
	if err != nil {
		return schemas.GraphEdge{}, fmt.Errorf("failed to marshal edge properties: %w", err)
	}

	err = p.runner.do(ctx, "create_edge", func(ctx context.Context) error {
		return p.inTx(ctx, "create_edge", func(tx pgx.Tx) error {
			live, err := collectIDs(tx.Query(ctx, sqlLockEndpoints, []string{edge.SourceID, edge.TargetID}))
			if err != nil {
				return err
			}
			if _, ok := live[edge.SourceID]; !ok {
				return &schemas.NodeNotFoundError{ID: edge.SourceID}
			}
			if _, ok := live[edge.TargetID]; !ok {
				return &schemas.NodeNotFoundError{ID: edge.TargetID}
			}
			_, err = tx.Exec(ctx, sqlInsertEdge,
				edge.ID, edge.SourceID, edge.TargetID, edge.EdgeType, string(props),
				edge.Weight, edge.Confidence, edge.CreatedAt)
			return mapPgWriteError(err, edge.ID)
		})
	})
	if err != nil {
		return schemas.GraphEdge{}, err
	}
	p.log.Debug("Edge created", zap.String("id", edge.ID), zap.String("source", edge.SourceID), zap.String("target", edge.TargetID))
	return edge, nil
}

// GetEdge returns the live edge with the given id, or nil.
func (p *PostgresKG) GetEdge(ctx context.Context, id string) (*schemas.GraphEdge, error) {
	var edge *schemas.GraphEdge
	err := p.runner.do(ctx, "get_edge", func(ctx context.Context) error {
		db, err := p.db("get_edge")
		if err != nil {
			return err
		}
		e, err := scanEdge(db.QueryRow(ctx, sqlGetEdge, id))
		if errors.Is(err, pgx.ErrNoRows) {
			edge = nil
			return nil
		}
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

// DeleteEdge soft-deletes one edge.
func (p *PostgresKG) DeleteEdge(ctx context.Context, id string) error {
	now := timestamp()
	return p.runner.do(ctx, "delete_edge", func(ctx context.Context) error {
		db, err := p.db("delete_edge")
		if err != nil {
			return err
		}
		tag, err := db.Exec(ctx, sqlDeleteEdge, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &schemas.EdgeNotFoundError{ID: id}
		}
		return nil
	})
}

// GetNodeEdges lists the live edges incident to a node.
func (p *PostgresKG) GetNodeEdges(ctx context.Context, nodeID string, direction schemas.Direction) ([]schemas.GraphEdge, error) {
	if direction == "" {
		direction = schemas.DirectionOutgoing
	}
	if !direction.Valid() {
		return nil, &schemas.TraversalError{Param: "direction", Reason: fmt.Sprintf("unknown direction %q", direction)}
	}

	var edges []schemas.GraphEdge
	err := p.runner.do(ctx, "get_node_edges", func(ctx context.Context) error {
		db, err := p.db("get_node_edges")
		if err != nil {
			return err
		}
		if err := p.requireNode(ctx, db, nodeID); err != nil {
			return err
		}
		edges, err = collectEdges(db.Query(ctx, nodeEdgesSQL(direction), nodeID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// -- Traversal --

// Traverse walks the graph breadth-first with a recursive CTE.
func (p *PostgresKG) Traverse(ctx context.Context, startID string, params schemas.TraversalParams) ([]schemas.GraphNode, error) {
	params, err := normalizeTraversal(params)
	if err != nil {
		return nil, err
	}

	var result []schemas.GraphNode
	err = p.runner.do(ctx, "traverse", func(ctx context.Context) error {
		db, err := p.db("traverse")
		if err != nil {
			return err
		}
		if err := p.requireNode(ctx, db, startID); err != nil {
			return err
		}
		if params.MaxDepth == 0 {
			result = []schemas.GraphNode{}
			return nil
		}

		var limit any
		if params.Limit > 0 {
			limit = params.Limit
		}
		rows, err := db.Query(ctx, traverseSQL(params.Direction),
			startID, nilIfEmpty(params.EdgeTypes), params.MaxDepth, nilIfEmpty(params.NodeLabels), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		found := make([]schemas.GraphNode, 0)
		for rows.Next() {
			var depth int
			n, err := scanNodeWith(rows, &depth)
			if err != nil {
				return err
			}
			found = append(found, n)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindShortestPath returns the fewest-edge outgoing path, breaking ties on
// the edge-id sequence.
func (p *PostgresKG) FindShortestPath(ctx context.Context, startID, endID string, maxDepth int) (*schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}

	var result *schemas.Path
	err := p.runner.do(ctx, "find_shortest_path", func(ctx context.Context) error {
		db, err := p.db("find_shortest_path")
		if err != nil {
			return err
		}
		if startID == endID {
			result, err = p.trivialPath(ctx, db, startID)
			return err
		}
		candidates, err := collectPathIDs(db.Query(ctx, pathsSQL(true), startID, endID, maxDepth))
		if err != nil {
			return err
		}
		// A candidate can lose an element between the walk and hydration.
		for len(candidates) > 0 {
			best, _ := pickShortest(candidates)
			paths, err := p.hydratePaths(ctx, db, []pathIDs{best})
			if err != nil {
				return err
			}
			if len(paths) == 1 {
				result = &paths[0]
				return nil
			}
			candidates = removeCandidate(candidates, best)
		}
		result = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindAllPaths returns every simple outgoing path within maxDepth.
func (p *PostgresKG) FindAllPaths(ctx context.Context, startID, endID string, maxDepth, limit int) ([]schemas.Path, error) {
	if err := validatePathQuery(maxDepth); err != nil {
		return nil, err
	}

	var result []schemas.Path
	err := p.runner.do(ctx, "find_all_paths", func(ctx context.Context) error {
		db, err := p.db("find_all_paths")
		if err != nil {
			return err
		}
		if startID == endID {
			trivial, err := p.trivialPath(ctx, db, startID)
			if err != nil {
				return err
			}
			result = []schemas.Path{}
			if trivial != nil {
				result = append(result, *trivial)
			}
			return nil
		}
		ids, err := collectPathIDs(db.Query(ctx, pathsSQL(false), startID, endID, maxDepth))
		if err != nil {
			return err
		}
		paths, err := p.hydratePaths(ctx, db, orderPaths(ids, 0))
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

// trivialPath is the zero-length path at id, or nil when the node is not live.
func (p *PostgresKG) trivialPath(ctx context.Context, db DBPool, id string) (*schemas.Path, error) {
	n, err := scanNode(db.QueryRow(ctx, sqlGetNode, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schemas.Path{Nodes: []schemas.GraphNode{n}, Edges: []schemas.GraphEdge{}}, nil
}

// hydratePaths loads the nodes and edges referenced by ids, keeping order and
// dropping paths whose elements are no longer live.
func (p *PostgresKG) hydratePaths(ctx context.Context, db DBPool, ids []pathIDs) ([]schemas.Path, error) {
	out := make([]schemas.Path, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	nodeIDs, edgeIDs := uniqueIDs(ids)

	nodeList, err := collectNodes(db.Query(ctx, sqlNodesByIDs, nodeIDs))
	if err != nil {
		return nil, err
	}
	edgeList, err := collectEdges(db.Query(ctx, sqlEdgesByIDs, edgeIDs))
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]schemas.GraphNode, len(nodeList))
	for _, n := range nodeList {
		nodes[n.ID] = n
	}
	edges := make(map[string]schemas.GraphEdge, len(edgeList))
	for _, e := range edgeList {
		edges[e.ID] = e
	}

	for _, pid := range ids {
		if path, ok := assemblePath(pid, nodes, edges); ok {
			out = append(out, path)
		}
	}
	return out, nil
}

func (p *PostgresKG) requireNode(ctx context.Context, db DBPool, id string) error {
	var exists bool
	if err := db.QueryRow(ctx, sqlNodeExists, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return &schemas.NodeNotFoundError{ID: id}
	}
	return nil
}

// -- Row helpers --

func scanNode(row pgx.Row) (schemas.GraphNode, error) {
	return scanNodeWith(row)
}

// scanNodeWith scans the node columns followed by any extra destinations.
func scanNodeWith(row pgx.Row, extra ...any) (schemas.GraphNode, error) {
	var (
		n     schemas.GraphNode
		props []byte
	)
	dest := append([]any{&n.ID, &n.Labels, &props, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return schemas.GraphNode{}, err
	}
	decoded, err := schemas.DecodeProperties(props)
	if err != nil {
		return schemas.GraphNode{}, fmt.Errorf("failed to unmarshal node properties: %w", err)
	}
	n.Properties = decoded
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

func scanEdge(row pgx.Row) (schemas.GraphEdge, error) {
	var (
		e     schemas.GraphEdge
		props []byte
	)
	if err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.EdgeType, &props, &e.Weight, &e.Confidence, &e.CreatedAt, &e.DeletedAt); err != nil {
		return schemas.GraphEdge{}, err
	}
	decoded, err := schemas.DecodeProperties(props)
	if err != nil {
		return schemas.GraphEdge{}, fmt.Errorf("failed to unmarshal edge properties: %w", err)
	}
	e.Properties = decoded
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func collectNodes(rows pgx.Rows, err error) ([]schemas.GraphNode, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	nodes := make([]schemas.GraphNode, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func collectEdges(rows pgx.Rows, err error) ([]schemas.GraphEdge, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := make([]schemas.GraphEdge, 0)
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func collectIDs(rows pgx.Rows, err error) (map[string]struct{}, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func collectPathIDs(rows pgx.Rows, err error) ([]pathIDs, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	paths := make([]pathIDs, 0)
	for rows.Next() {
		var pid pathIDs
		if err := rows.Scan(&pid.NodeIDs, &pid.EdgeIDs); err != nil {
			return nil, err
		}
		paths = append(paths, pid)
	}
	return paths, rows.Err()
}

// mapPgWriteError turns a duplicate key into a ValidationError.
func mapPgWriteError(err error, id string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		reason := "already exists"
		if id != "" {
			reason = fmt.Sprintf("'%s' already exists", id)
		}
		return &schemas.ValidationError{Field: "id", Reason: reason}
	}
	return err
}

func nilIfEmpty(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values
}

// removeCandidate drops every candidate with the same edge sequence as c.
func removeCandidate(candidates []pathIDs, c pathIDs) []pathIDs {
	out := candidates[:0]
	for _, cand := range candidates {
		if compareEdgeSequences(cand.EdgeIDs, c.EdgeIDs) != 0 {
			out = append(out, cand)
		}
	}
	return out
}
