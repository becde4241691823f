// Package ingest turns RDF documents into property-graph writes. It owns the
// pipeline ordering (fetch, parse, index bootstrap, classify, batch upsert,
// catalog annotation) while delegating transport, decoding, and persistence
// to narrow collaborator interfaces.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ontomart/ontomart/api/schemas"
	"github.com/ontomart/ontomart/internal/config"
	"github.com/ontomart/ontomart/internal/fetch"
	"github.com/ontomart/ontomart/internal/observability"
)

// GraphStore is the slice of the persistence layer the pipeline needs. Each
// upsert call covers one predicate batch in a single round trip and reports
// the store's own counts for it.
type GraphStore interface {
	EnsureIndexes(ctx context.Context) error
	UpsertRelationBatch(ctx context.Context, relType string, pairs []schemas.RelationPair) (nodes, relations int64, err error)
	UpsertLiteralBatch(ctx context.Context, key string, pairs []schemas.LiteralPair) (nodes int64, err error)
	SetOntologyCounts(ctx context.Context, ontologyID string, stats schemas.IngestStats) error
}

// DocumentFetcher resolves a source reference into a local document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, source string) (*fetch.Document, error)
}

// TripleParser decodes a local document into triples.
type TripleParser interface {
	ParseFile(path string) ([]schemas.Triple, error)
}

// Ingestor drives the ingestion pipeline for one document at a time. It is
// safe for concurrent use; each Ingest call runs its own batch pool.
type Ingestor struct {
	store   GraphStore
	fetcher DocumentFetcher
	parser  TripleParser
	cfg     config.IngestConfig
	log     *zap.Logger
}

// New wires an Ingestor from its collaborators. Concurrency and timeout
// settings below sane minimums are lifted to them.
func New(store GraphStore, fetcher DocumentFetcher, parser TripleParser, cfg config.IngestConfig, logger *zap.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, errors.New("ingest: graph store is required")
	}
	if fetcher == nil {
		return nil, errors.New("ingest: document fetcher is required")
	}
	if parser == nil {
		return nil, errors.New("ingest: triple parser is required")
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Second
	}

	return &Ingestor{
		store:   store,
		fetcher: fetcher,
		parser:  parser,
		cfg:     cfg,
		log:     logger.Named("ingest"),
	}, nil
}

// Ingest loads the document at source into the graph and returns the
// accumulated counts. When ontologyID is non-empty the matching catalog
// record is annotated with those counts after the batches finish.
//
// Failures before any batch runs return the collaborator's error directly.
// Once batches have started, failures come back as *Error carrying the
// counts from every batch that committed; nothing is rolled back.
func (ing *Ingestor) Ingest(ctx context.Context, source, ontologyID string) (schemas.IngestStats, error) {
	started := time.Now()

	doc, err := ing.fetcher.Fetch(ctx, source)
	if err != nil {
		observability.CounterIngestRuns.WithLabelValues("failed").Inc()
		return schemas.IngestStats{}, fmt.Errorf("acquire document: %w", err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			ing.log.Warn("Failed to remove temporary document",
				zap.String("path", doc.Path),
				zap.Error(cerr))
		}
	}()

	triples, err := ing.parser.ParseFile(doc.Path)
	if err != nil {
		observability.CounterIngestRuns.WithLabelValues("failed").Inc()
		return schemas.IngestStats{}, fmt.Errorf("parse document: %w", err)
	}

	// Missing indexes degrade lookup speed, not correctness, so a failed
	// bootstrap is logged and the run continues.
	if err := ing.ensureIndexes(ctx); err != nil {
		ing.log.Warn("Index bootstrap failed, continuing without indexes", zap.Error(err))
	}

	classified := Classify(triples)
	relational, literal := classified.Size()
	observability.CounterIngestTriples.WithLabelValues("relational").Add(float64(relational))
	observability.CounterIngestTriples.WithLabelValues("literal").Add(float64(literal))

	ing.log.Info("Classified document",
		zap.String("source", source),
		zap.Int("triples", len(triples)),
		zap.Int("relational", relational),
		zap.Int("literal", literal),
		zap.Int("relation_predicates", len(classified.RelationPredicates())),
		zap.Int("literal_predicates", len(classified.LiteralPredicates())))

	stats, runErr := ing.runBatches(ctx, classified)
	if runErr != nil {
		observability.CounterIngestRuns.WithLabelValues("partial").Inc()
		return stats, &Error{Partial: stats, Err: runErr}
	}

	if ontologyID != "" {
		if err := ing.annotate(ontologyID, stats); err != nil {
			observability.CounterIngestRuns.WithLabelValues("partial").Inc()
			return stats, &Error{Partial: stats, Err: err}
		}
	}

	observability.CounterIngestRuns.WithLabelValues("ok").Inc()
	ing.log.Info("Ingestion complete",
		zap.String("source", source),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("relationships", stats.Relationships),
		zap.Duration("elapsed", time.Since(started)))
	return stats, nil
}

// runBatches dispatches one upsert per predicate group through a bounded
// worker pool, relational groups first. Counts from successful batches fold
// into the shared total under a mutex. The first failure (or a parent
// context cancellation) stops further dispatch; batches already running
// finish against their own timeout and their counts still land in the total,
// because their writes are already durable.
func (ing *Ingestor) runBatches(ctx context.Context, classified *Classified) (schemas.IngestStats, error) {
	var (
		mu    sync.Mutex
		stats schemas.IngestStats
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(ing.cfg.BatchConcurrency)

	for _, predicate := range classified.RelationPredicates() {
		if groupCtx.Err() != nil {
			break
		}
		pred := predicate
		pairs := classified.Relations(pred)
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			// Upserts are not interruptible mid-statement: the batch gets its
			// own deadline detached from the run context so cancellation stops
			// dispatch rather than abandoning work already sent to the store.
			batchCtx, cancel := context.WithTimeout(context.Background(), ing.cfg.BatchTimeout)
			defer cancel()

			start := time.Now()
			nodes, relations, err := ing.store.UpsertRelationBatch(batchCtx, pred, pairs)
			observability.HistogramBatchDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				observability.CounterIngestBatches.WithLabelValues("relational", "failed").Inc()
				return fmt.Errorf("relation batch %q: %w", pred, err)
			}
			observability.CounterIngestBatches.WithLabelValues("relational", "ok").Inc()

			mu.Lock()
			stats.Add(schemas.IngestStats{Nodes: nodes, Relationships: relations})
			mu.Unlock()
			return nil
		})
	}

	for _, predicate := range classified.LiteralPredicates() {
		if groupCtx.Err() != nil {
			break
		}
		pred := predicate
		pairs := classified.Literals(pred)
		key := PropertyKey(pred)
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			batchCtx, cancel := context.WithTimeout(context.Background(), ing.cfg.BatchTimeout)
			defer cancel()

			start := time.Now()
			nodes, err := ing.store.UpsertLiteralBatch(batchCtx, key, pairs)
			observability.HistogramBatchDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				observability.CounterIngestBatches.WithLabelValues("literal", "failed").Inc()
				return fmt.Errorf("literal batch %q (key %q): %w", pred, key, err)
			}
			observability.CounterIngestBatches.WithLabelValues("literal", "ok").Inc()

			mu.Lock()
			stats.Add(schemas.IngestStats{Nodes: nodes})
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		// Dispatch may have stopped early on a parent cancellation without
		// any batch observing it; an incomplete run must not read as success.
		err = ctx.Err()
	}
	return stats, err
}

func (ing *Ingestor) ensureIndexes(ctx context.Context) error {
	indexCtx, cancel := context.WithTimeout(ctx, ing.cfg.BatchTimeout)
	defer cancel()
	return ing.store.EnsureIndexes(indexCtx)
}

// annotate records the final counts on the catalog entry. It runs on its own
// deadline rather than the run context: the batches it summarizes are
// already committed, so the annotation should land even during shutdown.
func (ing *Ingestor) annotate(ontologyID string, stats schemas.IngestStats) error {
	annotateCtx, cancel := context.WithTimeout(context.Background(), ing.cfg.BatchTimeout)
	defer cancel()

	if err := ing.store.SetOntologyCounts(annotateCtx, ontologyID, stats); err != nil {
		return fmt.Errorf("annotate ontology %s: %w", ontologyID, err)
	}
	return nil
}
