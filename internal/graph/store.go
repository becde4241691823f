// Package graph persists the property graph behind the ingestion pipeline:
// resources keyed by URI with a jsonb property bag, and typed relations
// between them. Write paths are batch upserts that complete in a single
// round trip per predicate group.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/api/schemas"
)

// ErrReservedKey is returned when a sanitized property key collides with the
// column holding the resource identifier.
var ErrReservedKey = errors.New("property key \"uri\" is reserved")

const reservedPropertyKey = "uri"

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// sqlUpsertRelations applies one relational predicate group in one statement:
// endpoint nodes first, then the edges, then the batch counters. The node
// set is deduplicated with UNION, so the DO UPDATE clause never sees the
// same uri twice within the statement, and sorted so concurrent batches lock
// overlapping rows in one order. The counters deliberately count the subject
// and object sides separately.
const sqlUpsertRelations = `
        WITH pairs AS (
            SELECT subject_uri, object_uri
            FROM unnest($2::text[], $3::text[]) AS t(subject_uri, object_uri)
        ),
        ins_nodes AS (
            INSERT INTO resources (uri)
            SELECT subject_uri FROM pairs
            UNION
            SELECT object_uri FROM pairs
            ORDER BY 1
            ON CONFLICT (uri) DO UPDATE SET last_seen = now()
        ),
        ins_edges AS (
            INSERT INTO relations (subject_uri, type, object_uri)
            SELECT DISTINCT subject_uri, $1::text, object_uri FROM pairs
            ON CONFLICT (subject_uri, type, object_uri) DO NOTHING
        )
        SELECT
            (SELECT count(DISTINCT subject_uri) FROM pairs)
              + (SELECT count(DISTINCT object_uri) FROM pairs) AS nodes,
            (SELECT count(*) FROM pairs) AS relations;
    `

// sqlUpsertLiterals applies one literal predicate group in one statement.
// DISTINCT ON collapses repeated subjects to their last value in document
// order before the insert, both to make the last statement win and because
// ON CONFLICT DO UPDATE rejects duplicate keys within a single statement.
const sqlUpsertLiterals = `
        WITH pairs AS (
            SELECT subject_uri, value, ord
            FROM unnest($2::text[], $3::text[]) WITH ORDINALITY AS t(subject_uri, value, ord)
        ),
        last_per_subject AS (
            SELECT DISTINCT ON (subject_uri) subject_uri, value
            FROM pairs
            ORDER BY subject_uri, ord DESC
        ),
        ins AS (
            INSERT INTO resources (uri, props)
            SELECT subject_uri, jsonb_build_object($1::text, value)
            FROM last_per_subject
            ON CONFLICT (uri) DO UPDATE SET
                props = resources.props || EXCLUDED.props,
                last_seen = now()
        )
        SELECT count(*) FROM last_per_subject;
    `

const sqlSetOntologyCounts = `
        UPDATE ontologies
        SET node_count = $2, relationship_count = $3, updated_at = now()
        WHERE id = $1::uuid;
    `

// Store is the PostgreSQL implementation of the graph write paths.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a graph store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("graph"),
	}, nil
}

// Pool exposes the underlying connection pool for collaborators that share
// it, such as the catalog store.
func (s *Store) Pool() DBPool { return s.pool }

// Ping reports connectivity; the health endpoint calls through to it.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertRelationBatch merges one relational predicate group into the graph
// and returns the batch counters: nodes is the distinct subject count plus
// the distinct object count (a uri on both sides counts twice), relations is
// the number of pairs processed, repeats included.
func (s *Store) UpsertRelationBatch(ctx context.Context, relType string, pairs []schemas.RelationPair) (int64, int64, error) {
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	subjects := make([]string, len(pairs))
	objects := make([]string, len(pairs))
	for i, p := range pairs {
		subjects[i] = p.Subject
		objects[i] = p.Object
	}

	var nodes, relations int64
	if err := s.pool.QueryRow(ctx, sqlUpsertRelations, relType, subjects, objects).Scan(&nodes, &relations); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert relation batch %q: %w", relType, err)
	}

	s.log.Debug("Upserted relation batch",
		zap.String("type", relType),
		zap.Int("pairs", len(pairs)),
		zap.Int64("nodes", nodes),
		zap.Int64("relations", relations))
	return nodes, relations, nil
}

// UpsertLiteralBatch merges one literal predicate group into the node
// property bags and returns the distinct subject count. The key must be a
// sanitized property key; "uri" is rejected before anything reaches the
// database.
func (s *Store) UpsertLiteralBatch(ctx context.Context, key string, pairs []schemas.LiteralPair) (int64, error) {
	if key == reservedPropertyKey {
		return 0, fmt.Errorf("failed to upsert literal batch: %w", ErrReservedKey)
	}
	if len(pairs) == 0 {
		return 0, nil
	}

	subjects := make([]string, len(pairs))
	values := make([]string, len(pairs))
	for i, p := range pairs {
		subjects[i] = p.Subject
		values[i] = p.Value
	}

	var nodes int64
	if err := s.pool.QueryRow(ctx, sqlUpsertLiterals, key, subjects, values).Scan(&nodes); err != nil {
		return 0, fmt.Errorf("failed to upsert literal batch %q: %w", key, err)
	}

	s.log.Debug("Upserted literal batch",
		zap.String("key", key),
		zap.Int("pairs", len(pairs)),
		zap.Int64("nodes", nodes))
	return nodes, nil
}

// SetOntologyCounts records the final counters of an ingestion run on the
// catalog entry.
func (s *Store) SetOntologyCounts(ctx context.Context, ontologyID string, stats schemas.IngestStats) error {
	tag, err := s.pool.Exec(ctx, sqlSetOntologyCounts, ontologyID, stats.Nodes, stats.Relationships)
	if err != nil {
		return fmt.Errorf("failed to update ontology counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ontology %s not found", ontologyID)
	}
	return nil
}
