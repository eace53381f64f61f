package knowledgegraph

import (
	"context"
	"fmt"
)

// postgresSchema bootstraps the relational layout. Every statement is
// idempotent; there is no migration tooling behind it.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		id          TEXT PRIMARY KEY,
		labels      TEXT[] NOT NULL,
		properties  JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		deleted_at  TIMESTAMPTZ NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		id          TEXT PRIMARY KEY,
		source_id   TEXT NOT NULL REFERENCES nodes(id),
		target_id   TEXT NOT NULL REFERENCES nodes(id),
		edge_type   TEXT NOT NULL,
		properties  JSONB NOT NULL DEFAULT '{}'::jsonb,
		weight      DOUBLE PRECISION NULL,
		confidence  DOUBLE PRECISION NULL CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
		created_at  TIMESTAMPTZ NOT NULL,
		deleted_at  TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_live ON nodes (id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_labels ON nodes USING GIN (labels)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_source_live ON edges (source_id, edge_type) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target_live ON edges (target_id, edge_type) WHERE deleted_at IS NULL`,
}

// EnsureSchema creates the tables and indexes when they are missing.
func (p *PostgresKG) EnsureSchema(ctx context.Context) error {
	return p.runner.do(ctx, "ensure_schema", func(ctx context.Context) error {
		db, err := p.db("ensure_schema")
		if err != nil {
			return err
		}
		for i, stmt := range postgresSchema {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
