package knowledgegraph

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// batchChunkSize bounds the rows of one multi-row INSERT; five parameters per
// row keeps a full chunk far below the 65535 bind-parameter limit.
const batchChunkSize = 1000

const (
	nodeColumns = `n.id, n.labels, n.properties, n.created_at, n.updated_at, n.deleted_at`
	edgeColumns = `e.id, e.source_id, e.target_id, e.edge_type, e.properties, e.weight, e.confidence, e.created_at, e.deleted_at`
)

var (
	sqlInsertNode = `
		INSERT INTO nodes (id, labels, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	sqlGetNode = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		WHERE n.id = $1 AND ` + liveSQL("n")

	sqlNodeExists = `
		SELECT EXISTS (SELECT 1 FROM nodes n WHERE n.id = $1 AND ` + liveSQL("n") + `)`

	sqlLockNode = sqlGetNode + `
		FOR UPDATE`

	sqlUpdateNode = `
		UPDATE nodes SET labels = $2, properties = $3, updated_at = $4
		WHERE id = $1`

	sqlDeleteNode = `
		UPDATE nodes n SET deleted_at = $2, updated_at = $2
		WHERE n.id = $1 AND ` + liveSQL("n")

	sqlDeleteIncidentEdges = `
		UPDATE edges e SET deleted_at = $2
		WHERE (e.source_id = $1 OR e.target_id = $1) AND ` + liveSQL("e")

	sqlLockEndpoints = `
		SELECT n.id FROM nodes n
		WHERE n.id = ANY($1) AND ` + liveSQL("n") + `
		FOR SHARE`

	sqlInsertEdge = `
		INSERT INTO edges (id, source_id, target_id, edge_type, properties, weight, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	sqlGetEdge = `
		SELECT ` + edgeColumns + `
		FROM edges e
		WHERE e.id = $1 AND ` + liveSQL("e")

	sqlDeleteEdge = `
		UPDATE edges e SET deleted_at = $2
		WHERE e.id = $1 AND ` + liveSQL("e")

	sqlNodesByIDs = `
		SELECT ` + nodeColumns + `
		FROM nodes n
		WHERE n.id = ANY($1) AND ` + liveSQL("n")

	sqlEdgesByIDs = `
		SELECT ` + edgeColumns + `
		FROM edges e
		WHERE e.id = ANY($1) AND ` + liveSQL("e")
)

// batchInsertNodesSQL renders a multi-row INSERT for rows nodes.
func batchInsertNodesSQL(rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO nodes (id, labels, properties, created_at, updated_at) VALUES ")
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
	}
	return b.String()
}

// nodeEdgesSQL lists live edges incident to $1 in the given direction.
func nodeEdgesSQL(direction schemas.Direction) string {
	var cond string
	switch direction {
	case schemas.DirectionIncoming:
		cond = "e.target_id = $1"
	case schemas.DirectionBoth:
		cond = "(e.source_id = $1 OR e.target_id = $1)"
	default:
		cond = "e.source_id = $1"
	}
	return `
		SELECT ` + edgeColumns + `
		FROM edges e
		WHERE ` + cond + ` AND ` + liveSQL("e") + `
		ORDER BY e.id COLLATE "C"`
}

// stepFragments returns the join condition from the current walk row w to an
// edge e, and the expression for the node reached over e.
func stepFragments(direction schemas.Direction) (join, next string) {
	switch direction {
	case schemas.DirectionIncoming:
		return "e.target_id = w.node_id", "e.source_id"
	case schemas.DirectionBoth:
		return "(e.source_id = w.node_id OR e.target_id = w.node_id)",
			"CASE WHEN e.source_id = w.node_id THEN e.target_id ELSE e.source_id END"
	default:
		return "e.source_id = w.node_id", "e.target_id"
	}
}

// traverseSQL renders the bounded breadth-first walk.
//
//	$1 start id, $2 edge types or NULL, $3 max depth, $4 labels or NULL, $5 limit or NULL
//
// Each row of walk is one simple walk from the start; a node's discovery
// depth is the shortest of them.
func traverseSQL(direction schemas.Direction) string {
	join, next := stepFragments(direction)
	return `
		WITH RECURSIVE walk (node_id, depth, visited) AS (
			SELECT s.id, 0, ARRAY[s.id]
			FROM nodes s
			WHERE s.id = $1 AND ` + liveSQL("s") + `
			UNION ALL
			SELECT ` + next + `, w.depth + 1, w.visited || ` + next + `
			FROM walk w
			JOIN edges e ON ` + join + `
			JOIN nodes m ON m.id = ` + next + `
			WHERE w.depth < $3
				AND ` + liveSQL("e") + `
				AND ` + liveSQL("m") + `
				AND ($2::TEXT[] IS NULL OR e.edge_type = ANY($2::TEXT[]))
				AND NOT (` + next + ` = ANY(w.visited))
		)
		SELECT ` + nodeColumns + `, d.depth
		FROM (
			SELECT node_id, MIN(depth) AS depth
			FROM walk
			WHERE depth > 0
			GROUP BY node_id
		) d
		JOIN nodes n ON n.id = d.node_id
		WHERE ($4::TEXT[] IS NULL OR n.labels && $4::TEXT[])
		ORDER BY d.depth, n.id COLLATE "C"
		LIMIT $5`
}

// pathsSQL renders the outgoing simple-path expansion from $1 to $2 within
// $3 hops. When shortestOnly is set only minimum-length rows are returned.
func pathsSQL(shortestOnly bool) string {
	filter := ""
	if shortestOnly {
		filter = `
			AND depth = (SELECT MIN(depth) FROM walk WHERE node_id = $2 AND depth > 0)`
	}
	return `
		WITH RECURSIVE walk (node_id, depth, node_path, edge_path) AS (
			SELECT s.id, 0, ARRAY[s.id], ARRAY[]::TEXT[]
			FROM nodes s
			WHERE s.id = $1 AND ` + liveSQL("s") + `
			UNION ALL
			SELECT e.target_id, w.depth + 1, w.node_path || e.target_id, w.edge_path || e.id
			FROM walk w
			JOIN edges e ON e.source_id = w.node_id
			JOIN nodes m ON m.id = e.target_id
			WHERE w.depth < $3
				AND w.node_id <> $2
				AND ` + liveSQL("e") + `
				AND ` + liveSQL("m") + `
				AND NOT (e.target_id = ANY(w.node_path))
		)
		SELECT node_path, edge_path
		FROM walk
		WHERE node_id = $2 AND depth > 0` + filter
}
