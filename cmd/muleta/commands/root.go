// ABOUTME: Root command, global flags and command tree for the muleta CLI
// ABOUTME: --verbose/--quiet tune the logger; --format selects text, json or yaml output
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
███╗   ███╗██╗   ██╗██╗     ███████╗████████╗ █████╗
████╗ ████║██║   ██║██║     ██╔════╝╚══██╔══╝██╔══██╗
██╔████╔██║██║   ██║██║     █████╗     ██║   ███████║
██║╚██╔╝██║██║   ██║██║     ██╔══╝     ██║   ██╔══██║
██║ ╚═╝ ██║╚██████╔╝███████╗███████╗   ██║   ██║  ██║
╚═╝     ╚═╝ ╚═════╝ ╚══════╝╚══════╝   ╚═╝   ╚═╝  ╚═╝
`

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "muleta",
		Short: "Personal knowledge graph with spaced repetition",
		Long: banner + `
Muleta turns study notes into a knowledge graph, generates study cards
from it, schedules their review, and points out what you do not know yet.

  muleta ingest --file notes.md      extract entities and relations
  muleta cards generate --all        create study cards
  muleta cards due                   what to review today
  muleta review <card-id> --quality 4  record a review
  muleta gaps analyze                find knowledge gaps`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case "auto", "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("--format must be auto, text, json or yaml, got %q", outputFormat)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format (auto, text, json, yaml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewIngestCmd(),
		NewImportCmd(),
		NewEntityCmd(),
		NewCardsCmd(),
		NewReviewCmd(),
		NewArgueCmd(),
		NewGapsCmd(),
		NewStatsCmd(),
		NewExportCmd(),
		NewMCPCmd(),
		NewInstallSkillCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
