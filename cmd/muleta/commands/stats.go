// ABOUTME: CLI command to show knowledge base statistics
// ABOUTME: --health probes the model endpoint; --graph prints the visualization graph
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/llm"
)

var (
	statsHealth bool
	statsGraph  bool
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Long: `Show totals for entities, relations, observations, cards, reviews,
gaps and arguments, with per-type breakdowns.

  --health  also probe the configured model endpoint
  --graph   print the {nodes, links, categories} visualization graph as JSON`,
		RunE: runStats,
	}
	cmd.Flags().BoolVar(&statsHealth, "health", false, "Probe the model endpoint")
	cmd.Flags().BoolVar(&statsGraph, "graph", false, "Print the visualization graph")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if statsGraph {
		graph, err := a.Store.Visualization(ctx)
		if err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
		if structured() {
			return printStructured(out, graph)
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(graph)
	}

	stats, err := a.Store.Statistics(ctx, a.Scheduler.Today())
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}
	var health *llm.HealthReport
	if statsHealth {
		report := llm.HealthReport{Error: "no model configured; running in degraded mode"}
		if a.LLM != nil {
			report = a.LLM.Health(ctx)
		}
		health = &report
	}

	if structured() {
		return printStructured(out, map[string]any{"statistics": stats, "health": health})
	}

	_, _ = fmt.Fprintf(out, "Entities:     %d (%d flagged)\n", stats.Entities, stats.Flagged)
	printBreakdown(out, stats.EntityTypes)
	_, _ = fmt.Fprintf(out, "Relations:    %d\n", stats.Relations)
	printBreakdown(out, stats.RelationTypes)
	_, _ = fmt.Fprintf(out, "Observations: %d\n", stats.Observations)
	_, _ = fmt.Fprintf(out, "Cards:        %d (%d due today)\n", stats.Cards, stats.DueToday)
	printBreakdown(out, stats.CardStates)
	printBreakdown(out, stats.CardTypes)
	_, _ = fmt.Fprintf(out, "Reviews:      %d\n", stats.Reviews)
	_, _ = fmt.Fprintf(out, "Open gaps:    %d\n", stats.OpenGaps)
	_, _ = fmt.Fprintf(out, "Arguments:    %d\n", stats.Arguments)
	_, _ = fmt.Fprintf(out, "Schema:       v%d\n", stats.SchemaVersion)

	if health != nil {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintf(out, "Model:     %s\n", health.Model)
		_, _ = fmt.Fprintf(out, "Base URL:  %s\n", health.BaseURL)
		_, _ = fmt.Fprintf(out, "Key:       %t\n", health.KeyConfigured)
		_, _ = fmt.Fprintf(out, "Reachable: %t\n", health.Reachable)
		if health.Error != "" {
			_, _ = fmt.Fprintf(out, "Error:     %s\n", health.Error)
		}
	}
	return nil
}

func printBreakdown(out io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "  %-20s %d\n", k, counts[k])
	}
}
