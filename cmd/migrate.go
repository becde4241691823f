package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ontomart/ontomart/internal/config"
	"github.com/ontomart/ontomart/internal/observability"
)

// newMigrateCmd creates the `migrate` command. The serve and ingest commands
// bootstrap the schema themselves; this one exists for deployments that run
// migrations with elevated credentials before the service starts.
func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the database schema and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			pool, graphStore, err := openGraph(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := graphStore.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure database schema: %w", err)
			}
			if err := graphStore.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to create indexes: %w", err)
			}

			logger.Info("Schema and indexes are in place")
			return nil
		},
	}
}
