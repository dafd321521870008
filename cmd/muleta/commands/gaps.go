// ABOUTME: CLI commands for knowledge gaps
// ABOUTME: analyze, list, resolve and watch (scheduled analysis) subcommands
package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/core"
	"github.com/harper/muleta/internal/models"
)

// NewGapsCmd creates the gaps command group
func NewGapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Find and track knowledge gaps",
		Long: `Find and track knowledge gaps.

  weak_understanding     recent reviews (or an assessment) below the threshold
  missing_relations      observations but no relations to other entities
  insufficient_evidence  no observations at all`,
	}
	cmd.AddCommand(
		newGapsAnalyzeCmd(),
		newGapsListCmd(),
		newGapsResolveCmd(),
		newGapsWatchCmd(),
	)
	return cmd
}

func newGapsAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run gap analysis now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.Gaps.Analyze(cmd.Context())
			if err != nil {
				return fmt.Errorf("analyzing gaps: %w", err)
			}
			return printGapReport(cmd.OutOrStdout(), report)
		},
	}
}

func newGapsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded gaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			gaps, err := a.Store.ListGaps(cmd.Context(), all)
			if err != nil {
				return fmt.Errorf("listing gaps: %w", err)
			}
			if structured() {
				if gaps == nil {
					gaps = []models.KnowledgeGap{}
				}
				return printStructured(cmd.OutOrStdout(), gaps)
			}
			if len(gaps) == 0 {
				if !quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No gaps found")
				}
				return nil
			}
			printGaps(cmd.OutOrStdout(), gaps)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include resolved gaps")
	return cmd
}

func newGapsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <entity-id> <gap-type>",
		Short: "Mark a gap as resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gapType := models.GapType(args[1])
			if !gapType.Valid() {
				return fmt.Errorf("unknown gap type %q", args[1])
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Store.ResolveGap(cmd.Context(), args[0], gapType); err != nil {
				return fmt.Errorf("resolving gap: %w", err)
			}
			if !quiet {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s for %s\n", gapType, args[0])
			}
			return nil
		},
	}
}

func newGapsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run gap analysis on the configured schedule",
		Long: `Run gap analysis once, then again on GAP_SCHEDULE (a cron
expression or descriptor such as @daily or @every 6h) until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			job, err := a.GapJob()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			job.OnReport(func(r *core.GapReport) {
				_ = printGapReport(out, r)
			})
			if _, err := job.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("analyzing gaps: %w", err)
			}

			job.Start()
			defer job.Stop()
			if !quiet {
				_, _ = fmt.Fprintf(out, "Watching (%s); next run %s. Ctrl-C to stop.\n",
					a.Config.GapSchedule, job.Next().Format("2006-01-02 15:04"))
			}
			<-cmd.Context().Done()
			return nil
		},
	}
}

func printGapReport(out io.Writer, report *core.GapReport) error {
	if structured() {
		return printStructured(out, report)
	}
	_, _ = fmt.Fprintf(out, "Analyzed %d entit(ies) at %s: %d open gap(s)\n",
		report.Entities, report.AnalyzedAt.Format("2006-01-02 15:04"), len(report.Gaps))
	for _, t := range models.GapTypes {
		if n := report.ByType[t]; n > 0 {
			_, _ = fmt.Fprintf(out, "  %s: %d\n", t, n)
		}
	}
	if len(report.Gaps) > 0 && !quiet {
		_, _ = fmt.Fprintln(out)
		printGaps(out, report.Gaps)
	}
	return nil
}

func printGaps(out io.Writer, gaps []models.KnowledgeGap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ENTITY\tGAP\tCONFIDENCE\tFROM\tSUGGESTION\n")
	_, _ = fmt.Fprintf(w, "------\t---\t----------\t----\t----------\n")
	for _, g := range gaps {
		name := g.EntityName
		if name == "" {
			name = g.EntityID
		}
		gapType := string(g.GapType)
		if g.Resolved {
			gapType += " (resolved)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			truncate(name, 30), gapType, g.Confidence, g.IdentifiedFrom, truncate(g.Suggestion, 60))
	}
	_ = w.Flush()
}
