package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Base DDL, applied in order on startup. relations carries no foreign keys
// into resources on purpose: a relation batch inserts endpoints and edges in
// one statement, and data-modifying CTEs inside a statement give no ordering
// guarantee a constraint could rely on.
const (
	ddlResources = `
        CREATE TABLE IF NOT EXISTS resources (
            uri        text PRIMARY KEY,
            props      jsonb NOT NULL DEFAULT '{}'::jsonb,
            first_seen timestamptz NOT NULL DEFAULT now(),
            last_seen  timestamptz NOT NULL DEFAULT now()
        );
    `
	ddlRelations = `
        CREATE TABLE IF NOT EXISTS relations (
            subject_uri text NOT NULL,
            type        text NOT NULL,
            object_uri  text NOT NULL,
            created_at  timestamptz NOT NULL DEFAULT now(),
            PRIMARY KEY (subject_uri, type, object_uri)
        );
    `
	ddlUsers = `
        CREATE TABLE IF NOT EXISTS users (
            email      text PRIMARY KEY,
            created_at timestamptz NOT NULL DEFAULT now()
        );
    `
	ddlOntologies = `
        CREATE TABLE IF NOT EXISTS ontologies (
            id                 uuid PRIMARY KEY,
            name               text NOT NULL,
            description        text NOT NULL DEFAULT '',
            source_url         text NOT NULL UNIQUE,
            image_url          text NOT NULL DEFAULT '',
            owner_email        text NOT NULL DEFAULT '',
            is_public          boolean NOT NULL DEFAULT false,
            likes              bigint NOT NULL DEFAULT 0,
            node_count         bigint NOT NULL DEFAULT 0,
            relationship_count bigint NOT NULL DEFAULT 0,
            created_at         timestamptz NOT NULL DEFAULT now(),
            updated_at         timestamptz NOT NULL DEFAULT now()
        );
    `
	ddlTags = `
        CREATE TABLE IF NOT EXISTS tags (
            name       text PRIMARY KEY,
            created_at timestamptz NOT NULL DEFAULT now()
        );
    `
	ddlOntologyTags = `
        CREATE TABLE IF NOT EXISTS ontology_tags (
            ontology_id uuid NOT NULL REFERENCES ontologies(id) ON DELETE CASCADE,
            tag_name    text NOT NULL REFERENCES tags(name) ON DELETE CASCADE,
            PRIMARY KEY (ontology_id, tag_name)
        );
    `
)

var schemaStatements = []struct {
	name string
	sql  string
}{
	{"resources", ddlResources},
	{"relations", ddlRelations},
	{"users", ddlUsers},
	{"ontologies", ddlOntologies},
	{"tags", ddlTags},
	{"ontology_tags", ddlOntologyTags},
}

// Secondary indexes. The primary keys above already enforce the uniqueness
// the upserts depend on; these only speed up the read paths.
var indexStatements = []struct {
	name string
	sql  string
}{
	{"resources_last_seen", `CREATE INDEX IF NOT EXISTS idx_resources_last_seen ON resources (last_seen);`},
	{"resources_props", `CREATE INDEX IF NOT EXISTS idx_resources_props ON resources USING gin (props);`},
	{"relations_type", `CREATE INDEX IF NOT EXISTS idx_relations_type ON relations (type);`},
	{"relations_object", `CREATE INDEX IF NOT EXISTS idx_relations_object ON relations (object_uri);`},
	{"ontologies_owner", `CREATE INDEX IF NOT EXISTS idx_ontologies_owner ON ontologies (owner_email);`},
	{"ontologies_created_at", `CREATE INDEX IF NOT EXISTS idx_ontologies_created_at ON ontologies (created_at DESC);`},
}

// EnsureSchema creates the base tables. A failure here is fatal: nothing
// downstream can work without them.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, st := range schemaStatements {
		if _, err := s.pool.Exec(ctx, st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	s.log.Debug("Schema ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}

// EnsureIndexes creates the secondary indexes. Every statement is attempted
// even after a failure and the first error is returned; callers treat it as
// a warning since the upserts stay correct without the indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	var firstErr error
	for _, st := range indexStatements {
		if _, err := s.pool.Exec(ctx, st.sql); err != nil {
			s.log.Warn("Failed to ensure index", zap.String("index", st.name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to ensure index %s: %w", st.name, err)
			}
		}
	}
	return firstErr
}
