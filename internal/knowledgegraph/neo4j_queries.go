package knowledgegraph

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// neo4jSchema holds the idempotent constraint and index statements.
var neo4jSchema = []string{
	`CREATE CONSTRAINT graph_node_id IF NOT EXISTS FOR (n:` + baseNodeLabel + `) REQUIRE n.id IS UNIQUE`,
	`CREATE INDEX graph_node_deleted_at IF NOT EXISTS FOR (n:` + baseNodeLabel + `) ON (n.deleted_at)`,
}

// nodeProjection returns the scalar columns of a node variable.
func nodeProjection(v string) string {
	return v + `.id AS id, ` +
		`[l IN labels(` + v + `) WHERE l <> '` + baseNodeLabel + `'] AS labels, ` +
		v + `.properties AS properties, ` +
		v + `.created_at AS created_at, ` +
		v + `.updated_at AS updated_at, ` +
		v + `.deleted_at AS deleted_at`
}

// edgeProjection returns the scalar columns of a relationship variable.
func edgeProjection(v string) string {
	return v + `.id AS id, ` +
		`startNode(` + v + `).id AS source_id, ` +
		`endNode(` + v + `).id AS target_id, ` +
		`type(` + v + `) AS edge_type, ` +
		v + `.properties AS properties, ` +
		v + `.weight AS weight, ` +
		v + `.confidence AS confidence, ` +
		v + `.created_at AS created_at, ` +
		v + `.deleted_at AS deleted_at`
}

// quoteIdent backtick-quotes a label or relationship type.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// labelClause renders ":`A`:`B`" for labels.
func labelClause(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(":")
		b.WriteString(quoteIdent(l))
	}
	return b.String()
}

var (
	cypherNodeIDTaken = `
		MATCH (n:` + baseNodeLabel + `) WHERE n.id IN $ids
		RETURN n.id AS id`

	cypherGetNode = `
		MATCH (n:` + baseNodeLabel + ` {id: $id}) WHERE ` + liveCypher("n") + `
		RETURN ` + nodeProjection("n") + `
		LIMIT 1`

	cypherNodeExists = `
		MATCH (n:` + baseNodeLabel + ` {id: $id}) WHERE ` + liveCypher("n") + `
		RETURN count(n) AS found`

	cypherDeleteNode = `
		MATCH (n:` + baseNodeLabel + ` {id: $id}) WHERE ` + liveCypher("n") + `
		SET n.deleted_at = $now, n.updated_at = $now
		WITH n
		OPTIONAL MATCH (n)-[r]-() WHERE ` + liveCypher("r") + `
		SET r.deleted_at = $now
		RETURN count(DISTINCT n) AS nodes, count(DISTINCT r) AS edges`

	cypherLiveEndpoints = `
		OPTIONAL MATCH (s:` + baseNodeLabel + ` {id: $source_id}) WHERE ` + liveCypher("s") + `
		OPTIONAL MATCH (t:` + baseNodeLabel + ` {id: $target_id}) WHERE ` + liveCypher("t") + `
		RETURN s IS NOT NULL AS source, t IS NOT NULL AS target`

	// Relationship indexes are per type, so a lookup by edge id alone scans
	// every relationship. Only single-edge operations take this path.
	cypherEdgeIDTaken = `
		MATCH ()-[r]->() WHERE r.id = $id
		RETURN count(r) AS found`

	cypherGetEdge = `
		MATCH ()-[r]->() WHERE r.id = $id AND ` + liveCypher("r") + `
		RETURN ` + edgeProjection("r") + `
		LIMIT 1`

	cypherDeleteEdge = `
		MATCH ()-[r]->() WHERE r.id = $id AND ` + liveCypher("r") + `
		SET r.deleted_at = $now
		RETURN count(r) AS deleted`

	cypherNodesByIDs = `
		MATCH (n:` + baseNodeLabel + `) WHERE n.id IN $ids AND ` + liveCypher("n") + `
		RETURN ` + nodeProjection("n")

	// Both endpoints of a path edge are path nodes, so anchoring on the node
	// id constraint avoids a relationship scan.
	cypherEdgesByIDs = `
		MATCH (s:` + baseNodeLabel + `)-[r]->() WHERE s.id IN $node_ids AND r.id IN $ids AND ` + liveCypher("r") + `
		RETURN ` + edgeProjection("r")
)

// createNodesCypher renders an UNWIND insert for nodes sharing one label set.
func createNodesCypher(labels []string) string {
	return `
		UNWIND $rows AS row
		CREATE (n:` + baseNodeLabel + labelClause(labels) + ` {
			id: row.id,
			properties: row.properties,
			created_at: row.created_at,
			updated_at: row.updated_at
		})`
}

// updateNodeCypher swaps the label set of one node and rewrites its properties.
func updateNodeCypher(oldLabels, newLabels []string) string {
	remove := ""
	if len(oldLabels) > 0 {
		remove = `
		REMOVE n` + labelClause(oldLabels)
	}
	return `
		MATCH (n:` + baseNodeLabel + ` {id: $id}) WHERE ` + liveCypher("n") + remove + `
		SET n` + labelClause(newLabels) + `, n.properties = $properties, n.updated_at = $updated_at`
}

// createEdgeCypher renders the relationship insert for edgeType, which must
// already have passed validation.
func createEdgeCypher(edgeType string) string {
	return `
		MATCH (s:` + baseNodeLabel + ` {id: $source_id}), (t:` + baseNodeLabel + ` {id: $target_id})
		CREATE (s)-[r:` + quoteIdent(edgeType) + ` {
			id: $id,
			properties: $properties,
			weight: $weight,
			confidence: $confidence,
			created_at: $created_at
		}]->(t)`
}

// relPattern renders a relationship pattern for direction with an optional
// variable-length range.
func relPattern(direction schemas.Direction, variable, length string) string {
	inner := "[" + variable + length + "]"
	switch direction {
	case schemas.DirectionIncoming:
		return "<-" + inner + "-"
	case schemas.DirectionBoth:
		return "-" + inner + "-"
	default:
		return "-" + inner + "->"
	}
}

// nodeEdgesCypher lists live relationships incident to $id.
func nodeEdgesCypher(direction schemas.Direction) string {
	return `
		MATCH (n:` + baseNodeLabel + ` {id: $id})` + relPattern(direction, "r", "") + `()
		WHERE ` + liveCypher("r") + `
		WITH DISTINCT r
		RETURN ` + edgeProjection("r") + `
		ORDER BY id`
}

// traverseCypher renders the variable-length expansion from $start.
//
//	$start id, $types list or null, $labels list or null
//
// The shortest walk reaching a node is always a simple path, so min(length)
// equals breadth-first discovery depth without a node-uniqueness predicate.
func traverseCypher(direction schemas.Direction, maxDepth int) string {
	return `
		MATCH p = (s:` + baseNodeLabel + ` {id: $start})` + relPattern(direction, "rels", fmt.Sprintf("*1..%d", maxDepth)) + `(n:` + baseNodeLabel + `)
		WHERE ` + liveCypher("s") + `
			AND n <> s
			AND all(r IN rels WHERE ` + liveCypher("r") + ` AND ($types IS NULL OR type(r) IN $types))
			AND all(x IN nodes(p) WHERE ` + liveCypher("x") + `)
		WITH n, min(length(p)) AS depth
		WHERE $labels IS NULL OR any(l IN labels(n) WHERE l IN $labels)
		RETURN ` + nodeProjection("n") + `, depth`
}

// pathsCypher renders the outgoing simple-path expansion from $start to $end
// of between minDepth and maxDepth hops.
func pathsCypher(minDepth, maxDepth int) string {
	return `
		MATCH p = (s:` + baseNodeLabel + ` {id: $start})` + relPattern(schemas.DirectionOutgoing, "rels", fmt.Sprintf("*%d..%d", minDepth, maxDepth)) + `(t:` + baseNodeLabel + ` {id: $end})
		WHERE all(r IN rels WHERE ` + liveCypher("r") + `)
			AND all(x IN nodes(p) WHERE ` + liveCypher("x") + ` AND single(y IN nodes(p) WHERE y = x))
		RETURN [x IN nodes(p) | x.id] AS node_ids, [r IN rels | r.id] AS edge_ids`
}
