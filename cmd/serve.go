package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/internal/catalog"
	"github.com/ontomart/ontomart/internal/config"
	"github.com/ontomart/ontomart/internal/fetch"
	"github.com/ontomart/ontomart/internal/graph"
	"github.com/ontomart/ontomart/internal/ingest"
	"github.com/ontomart/ontomart/internal/observability"
	"github.com/ontomart/ontomart/internal/rdfio"
	"github.com/ontomart/ontomart/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd(cfg *config.Config) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the catalog API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			// A server without the schema in place can only fail, so this
			// one is fatal. Missing indexes just make queries slower.
			if err := components.Graph.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure database schema: %w", err)
			}
			if err := components.Graph.EnsureIndexes(ctx); err != nil {
				logger.Warn("Index bootstrap failed, continuing without indexes", zap.Error(err))
			}

			srv := server.New(cfg.Server, components.Catalog, components.Ingestor, components.Graph, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			}

			// The parent context is already canceled; Shutdown applies its
			// own drain timeout on top of a fresh one.
			if err := srv.Shutdown(context.Background()); err != nil {
				return fmt.Errorf("failed to shut down cleanly: %w", err)
			}
			return <-errCh
		},
	}

	serveCmd.Flags().String("addr", "", "Listen address. (Overrides config/env)")

	return serveCmd
}

// components holds the initialized service graph shared by the serve and
// ingest commands.
type components struct {
	Pool     *pgxpool.Pool
	Graph    *graph.Store
	Catalog  *catalog.Store
	Ingestor *ingest.Ingestor
}

// Close releases the database pool.
func (c *components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// initializeComponents handles dependency injection.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	pool, graphStore, err := openGraph(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(cfg.Fetch, logger)

	parser, err := rdfio.NewParser(cfg.Ingest.DefaultFormat, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize parser: %w", err)
	}

	ingestor, err := ingest.New(graphStore, fetcher, parser, cfg.Ingest, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize ingestor: %w", err)
	}

	return &components{
		Pool:     pool,
		Graph:    graphStore,
		Catalog:  catalog.New(pool, logger),
		Ingestor: ingestor,
	}, nil
}

// openGraph connects the pgx pool and wraps it in the graph store.
func openGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, *graph.Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	graphStore, err := graph.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize graph store: %w", err)
	}
	return pool, graphStore, nil
}
