// ABOUTME: CLI command to ingest study text into the knowledge graph
// ABOUTME: Reads an argument, a file or stdin and prints the batch summary
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/core"
)

var (
	ingestFile       string
	ingestSourceType string
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Extract entities and relations from text",
		Long: `Extract entities and relations from text and merge them into the graph.

Names that fold to the same canonical form (case, accents, spacing) or
score above the merge threshold are merged into the existing entity.
Relations to unknown entities create stubs flagged for review.

Examples:
  muleta ingest "Kant escreveu a Crítica da Razão Pura"
  muleta ingest --file notas/etica.md
  cat resumo.txt | muleta ingest`,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestFile, "file", "", "Read text from file")
	cmd.Flags().StringVar(&ingestSourceType, "source-type", "", "Source type recorded on observations (default: file or text)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	text, err := readInput(ingestFile, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sourceType := ingestSourceType
	if sourceType == "" {
		sourceType = "text"
		if ingestFile != "" {
			sourceType = "file"
		}
	}

	summary, err := a.Normalizer.Ingest(cmd.Context(), core.IngestRequest{
		Text:       text,
		SourceType: sourceType,
		SourcePath: ingestFile,
	})
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}

	if structured() {
		return printStructured(cmd.OutOrStdout(), summary)
	}
	printIngestSummary(cmd, summary)
	return nil
}

func printIngestSummary(cmd *cobra.Command, s *core.IngestSummary) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Entities: %d created, %d merged\n", s.EntitiesCreated, s.EntitiesMerged)
	_, _ = fmt.Fprintf(out, "Relations: %d created, %d skipped\n", s.RelationsCreated, s.RelationsSkipped)
	if s.Observations > 0 {
		_, _ = fmt.Fprintf(out, "Observations: %d added\n", s.Observations)
	}
	if len(s.Flagged) > 0 {
		_, _ = fmt.Fprintf(out, "Flagged for review: %d\n", len(s.Flagged))
		for _, f := range s.Flagged {
			_, _ = fmt.Fprintf(out, "  %s  %s\n", f.ID, f.Name)
		}
	}
	if quiet {
		return
	}
	for _, w := range s.Warnings {
		_, _ = fmt.Fprintf(out, "Warning: %s\n", w)
	}
	if s.Degraded {
		_, _ = fmt.Fprintf(out, "Note: extraction ran in degraded mode (%s)\n", s.Extractor)
	}
}
