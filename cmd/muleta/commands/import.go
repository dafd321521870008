// ABOUTME: CLI command to load a memory.jsonl export into the knowledge graph
// ABOUTME: Every line goes through the Normalizer in one batch, so a failure imports nothing
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/core"
)

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <memory.jsonl>",
		Short: "Import entities, notes and relations from a JSONL memory file",
		Long: `Import a memory.jsonl export, one record per line:

  {"entity": {"name": "Kant", "entity_type": "pessoa", "description": "..."},
   "observations": ["...", {"content": "...", "confidence": 0.8}],
   "relations": [{"to_entity_name": "Hegel", "relation_type": "influencia", "evidence": "..."}]}

Names are deduplicated exactly as ingest does. Relations to unknown
entities create stubs flagged for review. A malformed line aborts the
import before anything is written.

Examples:
  muleta import memory.jsonl
  muleta import --format json backup/memory.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening memory file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cands, err := core.ParseMemoryJSONL(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	summary, err := a.Normalizer.Apply(cmd.Context(), cands, core.SourceInfo{Type: "import", Path: path})
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}

	if structured() {
		return printStructured(cmd.OutOrStdout(), summary)
	}
	printIngestSummary(cmd, summary)
	return nil
}
