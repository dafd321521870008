// ABOUTME: CLI command to export the whole knowledge base
// ABOUTME: Writes entities, relations, cards and arguments as yaml, json or markdown
package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		as     string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the knowledge base",
		Long: `Export entities with their observations, relations, cards and
arguments.

Formats: yaml (default), json, markdown (a readable study summary).

Examples:
  muleta export
  muleta export --as markdown --output estudo.md
  muleta export --as json > snapshot.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			ctx := cmd.Context()

			switch as {
			case "json":
				data, err := a.Store.Export(ctx)
				if err != nil {
					return fmt.Errorf("exporting: %w", err)
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(data)
			case "yaml", "markdown":
			default:
				return fmt.Errorf("--as must be yaml, json or markdown, got %q", as)
			}

			if output == "" {
				ext := map[string]string{"yaml": ".yaml", "markdown": ".md"}[as]
				output = filepath.Join(".", "muleta-export-"+time.Now().Format("2006-01-02")+ext)
			}
			if as == "yaml" {
				err = a.Store.ExportToYAML(ctx, output)
			} else {
				err = a.Store.ExportToMarkdown(ctx, output)
			}
			if err != nil {
				return fmt.Errorf("exporting: %w", err)
			}
			if !quiet {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "yaml", "Export format (yaml, json, markdown)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: muleta-export-<date>.<ext>)")
	return cmd
}
