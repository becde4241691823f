package cmd

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ontomart/ontomart/internal/config"
	"github.com/ontomart/ontomart/internal/ingest"
	"github.com/ontomart/ontomart/internal/observability"
)

// newIngestCmd creates and configures the `ingest` command, the one-shot
// counterpart of the POST /api/ingest endpoint.
func newIngestCmd(cfg *config.Config) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest [source]",
		Short: "Loads one ontology document into the graph",
		Long: `Loads one ontology document into the graph.

The source may be an http(s) URL or a local file path. With --ontology-id
the matching catalog record is annotated with the resulting counts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			ontologyID, _ := cmd.Flags().GetString("ontology-id")
			if ontologyID != "" {
				if _, err := uuid.Parse(ontologyID); err != nil {
					return fmt.Errorf("invalid ontology id %q: %w", ontologyID, err)
				}
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.Graph.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure database schema: %w", err)
			}

			stats, err := components.Ingestor.Ingest(ctx, args[0], ontologyID)
			if err != nil {
				var igErr *ingest.Error
				if errors.As(err, &igErr) {
					logger.Error("Ingestion failed after partial progress",
						zap.Int64("nodes", igErr.Partial.Nodes),
						zap.Int64("relationships", igErr.Partial.Relationships),
						zap.Error(err))
				}
				return err
			}

			fmt.Printf("Ingestion complete. Nodes: %d, Relationships: %d\n", stats.Nodes, stats.Relationships)
			return nil
		},
	}

	ingestCmd.Flags().String("ontology-id", "", "Catalog record to annotate with the resulting counts.")

	return ingestCmd
}
