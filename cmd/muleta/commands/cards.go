// ABOUTME: CLI commands for study cards
// ABOUTME: generate, due, list and export subcommands
package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/core"
	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// NewCardsCmd creates the cards command group
func NewCardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Generate, list and export study cards",
	}
	cmd.AddCommand(
		newCardsGenerateCmd(),
		newCardsDueCmd(),
		newCardsListCmd(),
		newCardsExportCmd(),
	)
	return cmd
}

func newCardsGenerateCmd() *cobra.Command {
	var (
		all      bool
		types    []string
		subtypes []string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "generate [entity-id...]",
		Short: "Generate study cards for entities",
		Long: `Generate study cards for entities.

Card types: definition, relation, application, socratic. Without --type,
definition, relation and application cards are generated. Socratic cards
need at least one --subtype (why_important, evidence, implications,
objections, relations). Existing cards are skipped unless --force is set.

Examples:
  muleta cards generate ent_1a2b ent_3c4d
  muleta cards generate --all --type definition
  muleta cards generate ent_1a2b --type socratic --subtype evidence --subtype objections`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass either entity ids or --all")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			req := core.GenerateRequest{EntityIDs: args, Force: force}
			if all {
				entities, err := a.Store.ListEntities(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing entities: %w", err)
				}
				if len(entities) == 0 {
					return fmt.Errorf("the knowledge graph is empty; ingest some text first")
				}
				for _, e := range entities {
					req.EntityIDs = append(req.EntityIDs, e.ID)
				}
			}
			for _, t := range types {
				req.CardTypes = append(req.CardTypes, models.CardType(t))
			}
			for _, s := range subtypes {
				req.SocraticSubtypes = append(req.SocraticSubtypes, models.SocraticSubtype(s))
			}

			summary, err := a.Cards.Generate(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("generating cards: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Cards: %d created, %d skipped, %d failed\n",
				len(summary.Created), summary.Skipped, len(summary.Failures))
			for _, f := range summary.Failures {
				_, _ = fmt.Fprintf(out, "  failed %s %s: %s\n", f.EntityID, f.CardType, f.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Generate for every entity")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Card types (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&subtypes, "subtype", nil, "Socratic subtypes (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&force, "force", false, "Create cards even when one already exists")
	return cmd
}

func newCardsDueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List cards due for review today",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cards, err := a.Scheduler.Due(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading due cards: %w", err)
			}
			if len(cards) > limit {
				cards = cards[:limit]
			}
			if len(cards) == 0 && !structured() {
				if !quiet {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Nothing due on %s\n", formatDay(a.Scheduler.Today()))
				}
				return nil
			}
			return printCards(cmd, cards)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of cards")
	return cmd
}

func newCardsListCmd() *cobra.Command {
	var entityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards, optionally for one entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cards, err := a.Store.ListCards(cmd.Context(), entityID)
			if err != nil {
				return fmt.Errorf("listing cards: %w", err)
			}
			return printCards(cmd, cards)
		},
	}
	cmd.Flags().StringVar(&entityID, "entity", "", "Only cards of this entity id")
	return cmd
}

func newCardsExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cards for flashcard tools",
		Long: `Export every card as question/answer records.

Formats: json, yaml, tsv (front, back, type, entity; importable by
flashcard applications).

Examples:
  muleta cards export --format tsv --output cards.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			records, err := a.Store.CardRecords(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading cards: %w", err)
			}
			err = writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return sqlite.WriteCardRecords(w, records, format)
			})
			if err != nil {
				return fmt.Errorf("exporting cards: %w", err)
			}
			if output != "" && !quiet {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d card(s) to %s\n", len(records), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "as", sqlite.FormatJSON, "Export format (json, yaml, tsv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func printCards(cmd *cobra.Command, cards []models.Card) error {
	if structured() {
		if cards == nil {
			cards = []models.Card{}
		}
		return printStructured(cmd.OutOrStdout(), cards)
	}
	if len(cards) == 0 {
		if !quiet {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No cards found")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "QUESTION\tTYPE\tSTATE\tNEXT\tINTERVAL\tID\n")
	_, _ = fmt.Fprintf(w, "--------\t----\t-----\t----\t--------\t--\n")
	for _, c := range cards {
		cardType := string(c.CardType)
		if c.SocraticSubtype != "" {
			cardType += "/" + string(c.SocraticSubtype)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dd\t%s\n",
			truncate(c.Question, 50), cardType, c.State, formatDay(c.NextReview), c.IntervalDays, c.ID)
	}
	_ = w.Flush()

	if !quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d card(s)\n", len(cards))
	}
	return nil
}
