// Package catalog manages the marketplace records in front of the graph:
// ontology entries, their tags, and the owners who registered them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/api/schemas"
	"github.com/ontomart/ontomart/internal/graph"
	"github.com/ontomart/ontomart/internal/observability"
)

// ErrNotFound is returned when the referenced ontology does not exist.
var ErrNotFound = errors.New("ontology not found")

// MaxPageSize caps one search page; it is also the page size assumed when a
// caller does not name one.
const MaxPageSize = 100

const (
	sqlInsertUser = `
        INSERT INTO users (email)
        VALUES ($1)
        ON CONFLICT (email) DO NOTHING;
    `
	sqlInsertOntology = `
        INSERT INTO ontologies (id, name, description, source_url, image_url, owner_email, is_public)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (source_url) DO NOTHING
        RETURNING created_at, updated_at;
    `
	sqlInsertTag = `
        INSERT INTO tags (name)
        VALUES ($1)
        ON CONFLICT (name) DO NOTHING;
    `
	sqlLinkTag = `
        INSERT INTO ontology_tags (ontology_id, tag_name)
        VALUES ($1, $2)
        ON CONFLICT (ontology_id, tag_name) DO NOTHING;
    `
	sqlSearchOntologies = `
        SELECT o.id, o.name, o.description, o.source_url, o.image_url, o.owner_email,
               o.is_public, o.likes, o.node_count, o.relationship_count,
               o.created_at, o.updated_at,
               COALESCE(array_agg(ot.tag_name ORDER BY ot.tag_name) FILTER (WHERE ot.tag_name IS NOT NULL), '{}') AS tags
        FROM ontologies o
        LEFT JOIN ontology_tags ot ON ot.ontology_id = o.id
        WHERE o.name ILIKE $1 OR o.description ILIKE $1
        GROUP BY o.id
        ORDER BY o.created_at DESC
        LIMIT $2 OFFSET $3;
    `
	sqlCountOntologies = `
        SELECT count(*)
        FROM ontologies
        WHERE name ILIKE $1 OR description ILIKE $1;
    `
	sqlGetOntology = `
        SELECT o.id, o.name, o.description, o.source_url, o.image_url, o.owner_email,
               o.is_public, o.likes, o.node_count, o.relationship_count,
               o.created_at, o.updated_at,
               COALESCE(array_agg(ot.tag_name ORDER BY ot.tag_name) FILTER (WHERE ot.tag_name IS NOT NULL), '{}') AS tags
        FROM ontologies o
        LEFT JOIN ontology_tags ot ON ot.ontology_id = o.id
        WHERE o.id = $1
        GROUP BY o.id;
    `
	sqlUpdateOntology = `
        UPDATE ontologies
        SET name = COALESCE($2, name),
            description = COALESCE($3, description),
            image_url = COALESCE($4, image_url),
            is_public = COALESCE($5, is_public),
            updated_at = now()
        WHERE id = $1
        RETURNING name, description, source_url, image_url, owner_email, is_public,
                  likes, node_count, relationship_count, created_at, updated_at;
    `
	sqlClearTags = `
        DELETE FROM ontology_tags
        WHERE ontology_id = $1;
    `
	sqlTagsForOntology = `
        SELECT tag_name
        FROM ontology_tags
        WHERE ontology_id = $1
        ORDER BY tag_name;
    `
	sqlDeleteOntologies = `
        DELETE FROM ontologies
        WHERE id = ANY($1::uuid[]) AND owner_email = $2;
    `
	sqlLikeOntology = `
        UPDATE ontologies
        SET likes = likes + 1, updated_at = now()
        WHERE id = $1
        RETURNING likes;
    `
	sqlListTags = `
        SELECT name FROM tags ORDER BY name;
    `
	sqlAddTags = `
        INSERT INTO tags (name)
        SELECT unnest($1::text[])
        ON CONFLICT (name) DO NOTHING;
    `
)

// Store is the PostgreSQL-backed catalog. It shares the connection pool with
// the graph store.
type Store struct {
	pool graph.DBPool
	log  *zap.Logger
}

// New wires a catalog store over an already-verified pool.
func New(pool graph.DBPool, logger *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.Named("catalog"),
	}
}

// CreateBatch registers new catalog records in one transaction, skipping any
// whose source_url is already present. The returned records carry their
// generated identifiers; skipped counts the ones left out.
func (s *Store) CreateBatch(ctx context.Context, ownerEmail string, inputs []schemas.OntologyInput) (created []schemas.Ontology, skipped int, err error) {
	if len(inputs) == 0 {
		return nil, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if ownerEmail != "" {
		if _, err := tx.Exec(ctx, sqlInsertUser, ownerEmail); err != nil {
			return nil, 0, fmt.Errorf("failed to upsert owner %s: %w", ownerEmail, err)
		}
	}

	batch := &pgx.Batch{}
	batchOps := 0

	for _, in := range inputs {
		rec := schemas.Ontology{
			ID:          uuid.New(),
			Name:        in.Name,
			Description: in.Description,
			SourceURL:   in.SourceURL,
			ImageURL:    in.ImageURL,
			OwnerEmail:  ownerEmail,
			IsPublic:    in.IsPublic,
			Tags:        normalizeTags(in.Tags),
		}

		err := tx.QueryRow(ctx, sqlInsertOntology,
			rec.ID, rec.Name, rec.Description, rec.SourceURL, rec.ImageURL, rec.OwnerEmail, rec.IsPublic,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to insert ontology %q: %w", in.SourceURL, err)
		}

		for _, tag := range rec.Tags {
			batch.Queue(sqlInsertTag, tag)
			batch.Queue(sqlLinkTag, rec.ID, tag)
			batchOps += 2
		}

		created = append(created, rec)
	}

	if batchOps > 0 {
		if err := s.sendTagBatch(ctx, tx, batch, batchOps); err != nil {
			return nil, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.CounterCatalogRecords.Add(float64(len(created)))
	s.log.Info("Catalog records created",
		zap.Int("created", len(created)),
		zap.Int("skipped", skipped),
		zap.String("owner", ownerEmail))
	return created, skipped, nil
}

// Search returns one page of records matching the query against name or
// description, newest first. The visibility flag is carried on each record,
// not enforced as a filter. Limit is clamped to 1..MaxPageSize and negative
// offsets become 0.
func (s *Store) Search(ctx context.Context, query string, limit, offset int) (*schemas.SearchResult, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + query + "%"

	rows, err := s.pool.Query(ctx, sqlSearchOntologies, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search ontologies: %w", err)
	}
	defer rows.Close()

	items := make([]schemas.Ontology, 0, limit)
	for rows.Next() {
		var o schemas.Ontology
		if err := rows.Scan(
			&o.ID, &o.Name, &o.Description, &o.SourceURL, &o.ImageURL, &o.OwnerEmail,
			&o.IsPublic, &o.Likes, &o.NodeCount, &o.RelationshipCount,
			&o.CreatedAt, &o.UpdatedAt, &o.Tags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ontology row: %w", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	var total int64
	if err := s.pool.QueryRow(ctx, sqlCountOntologies, pattern).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count ontologies: %w", err)
	}

	return &schemas.SearchResult{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get fetches one record by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*schemas.Ontology, error) {
	var o schemas.Ontology
	err := s.pool.QueryRow(ctx, sqlGetOntology, id).Scan(
		&o.ID, &o.Name, &o.Description, &o.SourceURL, &o.ImageURL, &o.OwnerEmail,
		&o.IsPublic, &o.Likes, &o.NodeCount, &o.RelationshipCount,
		&o.CreatedAt, &o.UpdatedAt, &o.Tags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ontology %s: %w", id, err)
	}
	return &o, nil
}

// Update applies the non-nil fields of upd and, when Tags is non-nil,
// replaces the tag set. The record is returned as stored.
func (s *Store) Update(ctx context.Context, id uuid.UUID, upd schemas.OntologyUpdate) (*schemas.Ontology, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	o := schemas.Ontology{ID: id}
	err = tx.QueryRow(ctx, sqlUpdateOntology, id, upd.Name, upd.Description, upd.ImageURL, upd.IsPublic).Scan(
		&o.Name, &o.Description, &o.SourceURL, &o.ImageURL, &o.OwnerEmail,
		&o.IsPublic, &o.Likes, &o.NodeCount, &o.RelationshipCount,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ontology %s: %w", id, err)
	}

	if upd.Tags != nil {
		o.Tags = normalizeTags(upd.Tags)
		if _, err := tx.Exec(ctx, sqlClearTags, id); err != nil {
			return nil, fmt.Errorf("failed to clear tags: %w", err)
		}
		if len(o.Tags) > 0 {
			batch := &pgx.Batch{}
			for _, tag := range o.Tags {
				batch.Queue(sqlInsertTag, tag)
				batch.Queue(sqlLinkTag, id, tag)
			}
			if err := s.sendTagBatch(ctx, tx, batch, len(o.Tags)*2); err != nil {
				return nil, err
			}
		}
	} else {
		tags, err := tagsFor(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		o.Tags = tags
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &o, nil
}

// Delete removes the caller's records among ids and reports how many went
// away. Records owned by somebody else are left untouched rather than
// erroring, so a mixed selection still deletes what it can.
func (s *Store) Delete(ctx context.Context, ownerEmail string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	tag, err := s.pool.Exec(ctx, sqlDeleteOntologies, strIDs, ownerEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ontologies: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Like increments the like counter and returns the new value.
func (s *Store) Like(ctx context.Context, id uuid.UUID) (int64, error) {
	var likes int64
	err := s.pool.QueryRow(ctx, sqlLikeOntology, id).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to like ontology %s: %w", id, err)
	}
	return likes, nil
}

// ListTags returns every registered tag name in lexical order.
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, sqlListTags)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return tags, nil
}

// AddTags registers tag names after normalization, ignoring duplicates, and
// reports how many were new.
func (s *Store) AddTags(ctx context.Context, names []string) (int64, error) {
	normalized := normalizeTags(names)
	if len(normalized) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, sqlAddTags, normalized)
	if err != nil {
		return 0, fmt.Errorf("failed to add tags: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) sendTagBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, ops int) error {
	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send tag batch: batch results is nil")
	}
	for i := 0; i < ops; i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to attach tags: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close tag batch: %w", err)
	}
	return nil
}

func tagsFor(ctx context.Context, tx pgx.Tx, id uuid.UUID) ([]string, error) {
	rows, err := tx.Query(ctx, sqlTagsForOntology, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return tags, nil
}

// normalizeTags lowercases, trims, and dedups while keeping first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		name := strings.ToLower(strings.TrimSpace(t))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
