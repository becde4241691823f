package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace so the
// mock matches the statement regardless of formatting.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newMockedCatalog(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	return New(mockPool, zap.NewNop()), mockPool
}

func TestNormalizeTags(t *testing.T) {
	t.Run("should lowercase, trim and dedup keeping order", func(t *testing.T) {
		got := normalizeTags([]string{" Legal ", "medicine", "LEGAL", "", "  "})
		assert.Equal(t, []string{"legal", "medicine"}, got)
	})

	t.Run("should return nil when nothing survives", func(t *testing.T) {
		assert.Nil(t, normalizeTags(nil))
		assert.Nil(t, normalizeTags([]string{"", "   "}))
	})
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should create records with tags in one transaction", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)
		now := time.Now().UTC()

		inputs := []schemas.OntologyInput{
			{Name: "FOAF", SourceURL: "http://xmlns.com/foaf/0.1/", IsPublic: true, Tags: []string{"Social", "people"}},
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertUser)).
			WithArgs("alice@example.com").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsertOntology)).
			WithArgs(pgxmock.AnyArg(), "FOAF", "", "http://xmlns.com/foaf/0.1/", "", "alice@example.com", true).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		batchExp := mockPool.ExpectBatch()
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertTag)).
			WithArgs("social").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlLinkTag)).
			WithArgs(pgxmock.AnyArg(), "social").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertTag)).
			WithArgs("people").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlLinkTag)).
			WithArgs(pgxmock.AnyArg(), "people").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		created, skipped, err := store.CreateBatch(ctx, "alice@example.com", inputs)
		require.NoError(t, err)
		assert.Zero(t, skipped)
		require.Len(t, created, 1)
		assert.Equal(t, "FOAF", created[0].Name)
		assert.Equal(t, "alice@example.com", created[0].OwnerEmail)
		assert.Equal(t, []string{"social", "people"}, created[0].Tags)
		assert.NotEqual(t, uuid.Nil, created[0].ID)
		assert.True(t, created[0].CreatedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should skip records whose source is already registered", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)
		now := time.Now().UTC()

		inputs := []schemas.OntologyInput{
			{Name: "New", SourceURL: "http://x/new.ttl", IsPublic: true},
			{Name: "Dup", SourceURL: "http://x/dup.ttl", IsPublic: true},
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertUser)).
			WithArgs("bob@example.com").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsertOntology)).
			WithArgs(pgxmock.AnyArg(), "New", "", "http://x/new.ttl", "", "bob@example.com", true).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsertOntology)).
			WithArgs(pgxmock.AnyArg(), "Dup", "", "http://x/dup.ttl", "", "bob@example.com", true).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		created, skipped, err := store.CreateBatch(ctx, "bob@example.com", inputs)
		require.NoError(t, err)
		assert.Equal(t, 1, skipped)
		require.Len(t, created, 1)
		assert.Equal(t, "New", created[0].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should do nothing for an empty batch", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		created, skipped, err := store.CreateBatch(ctx, "alice@example.com", nil)
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Empty(t, created)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when an insert fails", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		insertErr := errors.New("value too long")
		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlInsertOntology)).
			WithArgs(pgxmock.AnyArg(), "Broken", "", "http://x/broken.ttl", "", "", false).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		_, _, err := store.CreateBatch(ctx, "", []schemas.OntologyInput{
			{Name: "Broken", SourceURL: "http://x/broken.ttl"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	searchColumns := []string{
		"id", "name", "description", "source_url", "image_url", "owner_email",
		"is_public", "likes", "node_count", "relationship_count",
		"created_at", "updated_at", "tags",
	}

	t.Run("should return a page with tags and the total", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		now := time.Now().UTC()
		rows := pgxmock.NewRows(searchColumns).AddRow(
			id, "FOAF", "friend of a friend", "http://xmlns.com/foaf/0.1/", "", "alice@example.com",
			true, int64(3), int64(120), int64(80),
			now, now, []string{"people", "social"},
		)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSearchOntologies)).
			WithArgs("%friend%", 20, 0).
			WillReturnRows(rows)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlCountOntologies)).
			WithArgs("%friend%").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		result, err := store.Search(ctx, "friend", 20, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		assert.Equal(t, 20, result.Limit)
		require.Len(t, result.Items, 1)
		assert.Equal(t, id, result.Items[0].ID)
		assert.Equal(t, []string{"people", "social"}, result.Items[0].Tags)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should clamp oversized limits and negative offsets", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSearchOntologies)).
			WithArgs("%%", 100, 0).
			WillReturnRows(pgxmock.NewRows(searchColumns))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlCountOntologies)).
			WithArgs("%%").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		result, err := store.Search(ctx, "", 5000, -3)
		require.NoError(t, err)
		assert.Equal(t, 100, result.Limit)
		assert.Zero(t, result.Offset)
		assert.Empty(t, result.Items)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should lift a zero limit to the smallest page", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSearchOntologies)).
			WithArgs("%%", 1, 0).
			WillReturnRows(pgxmock.NewRows(searchColumns))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlCountOntologies)).
			WithArgs("%%").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		result, err := store.Search(ctx, "", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Limit)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should match on the search pattern alone", func(t *testing.T) {
		// New records default to private; a visibility predicate would make
		// them unlistable. The filter is the ILIKE disjunction and nothing
		// else.
		squash := func(s string) string {
			return regexp.MustCompile(`\s+`).ReplaceAllString(s, " ")
		}
		assert.Contains(t, squash(sqlSearchOntologies), "WHERE o.name ILIKE $1 OR o.description ILIKE $1")
		assert.Contains(t, squash(sqlCountOntologies), "WHERE name ILIKE $1 OR description ILIKE $1")

		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		now := time.Now().UTC()
		rows := pgxmock.NewRows(searchColumns).AddRow(
			id, "Draft Vocab", "unpublished vocabulary", "http://x/draft.ttl", "", "dave@example.com",
			false, int64(0), int64(0), int64(0),
			now, now, []string{},
		)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSearchOntologies)).
			WithArgs("%vocab%", 100, 0).
			WillReturnRows(rows)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlCountOntologies)).
			WithArgs("%vocab%").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		result, err := store.Search(ctx, "vocab", 100, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		require.Len(t, result.Items, 1)
		assert.False(t, result.Items[0].IsPublic, "private records list like any other")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("should fetch one record by id", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		now := time.Now().UTC()
		rows := pgxmock.NewRows([]string{
			"id", "name", "description", "source_url", "image_url", "owner_email",
			"is_public", "likes", "node_count", "relationship_count",
			"created_at", "updated_at", "tags",
		}).AddRow(
			id, "Gene Ontology", "", "http://purl.obolibrary.org/obo/go.owl", "", "carol@example.com",
			false, int64(0), int64(0), int64(0), now, now, []string{},
		)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetOntology)).
			WithArgs(id).
			WillReturnRows(rows)

		o, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Gene Ontology", o.Name)
		assert.False(t, o.IsPublic, "private records fetch like any other")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map missing rows to ErrNotFound", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetOntology)).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	updateColumns := []string{
		"name", "description", "source_url", "image_url", "owner_email",
		"is_public", "likes", "node_count", "relationship_count",
		"created_at", "updated_at",
	}

	t.Run("should update fields and keep the existing tag set", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		now := time.Now().UTC()
		upd := schemas.OntologyUpdate{Name: strPtr("Renamed")}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlUpdateOntology)).
			WithArgs(id, strPtr("Renamed"), (*string)(nil), (*string)(nil), (*bool)(nil)).
			WillReturnRows(pgxmock.NewRows(updateColumns).AddRow(
				"Renamed", "desc", "http://x/a.ttl", "", "alice@example.com",
				true, int64(2), int64(10), int64(5), now, now,
			))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlTagsForOntology)).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"tag_name"}).AddRow("legal"))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		o, err := store.Update(ctx, id, upd)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", o.Name)
		assert.Equal(t, []string{"legal"}, o.Tags)
		assert.Equal(t, id, o.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should replace the tag set when tags are supplied", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		now := time.Now().UTC()
		upd := schemas.OntologyUpdate{
			IsPublic: boolPtr(false),
			Tags:     []string{"Medicine"},
		}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlUpdateOntology)).
			WithArgs(id, (*string)(nil), (*string)(nil), (*string)(nil), boolPtr(false)).
			WillReturnRows(pgxmock.NewRows(updateColumns).AddRow(
				"Name", "", "http://x/b.ttl", "", "alice@example.com",
				false, int64(0), int64(0), int64(0), now, now,
			))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlClearTags)).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		batchExp := mockPool.ExpectBatch()
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertTag)).
			WithArgs("medicine").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlLinkTag)).
			WithArgs(id, "medicine").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		o, err := store.Update(ctx, id, upd)
		require.NoError(t, err)
		assert.False(t, o.IsPublic)
		assert.Equal(t, []string{"medicine"}, o.Tags)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map missing rows to ErrNotFound", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlUpdateOntology)).
			WithArgs(id, (*string)(nil), (*string)(nil), (*string)(nil), (*bool)(nil)).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback()

		_, err := store.Update(ctx, id, schemas.OntologyUpdate{})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete only the caller's records", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		strIDs := []string{ids[0].String(), ids[1].String(), ids[2].String()}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlDeleteOntologies)).
			WithArgs(strIDs, "alice@example.com").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		deleted, err := store.Delete(ctx, "alice@example.com", ids)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted, "records owned by others stay put")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should do nothing for an empty id list", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		deleted, err := store.Delete(ctx, "alice@example.com", nil)
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLike(t *testing.T) {
	ctx := context.Background()

	t.Run("should increment and return the counter", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlLikeOntology)).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"likes"}).AddRow(int64(8)))

		likes, err := store.Like(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(8), likes)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map missing rows to ErrNotFound", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		id := uuid.New()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlLikeOntology)).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := store.Like(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTags(t *testing.T) {
	ctx := context.Background()

	t.Run("should list tags in lexical order", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlListTags)).
			WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("legal").AddRow("medicine"))

		tags, err := store.ListTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"legal", "medicine"}, tags)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should add normalized tags and report new ones", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlAddTags)).
			WithArgs([]string{"legal", "medicine"}).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		added, err := store.AddTags(ctx, []string{" Legal ", "MEDICINE", "legal"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), added)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should skip the database when nothing survives normalization", func(t *testing.T) {
		store, mockPool := newMockedCatalog(t)

		added, err := store.AddTags(ctx, []string{"", "   "})
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
