// ABOUTME: CLI commands to browse and edit knowledge graph entities
// ABOUTME: search, show, type, flagged and edit subcommands
package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/storage/sqlite"
)

// NewEntityCmd creates the entity command group
func NewEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Browse and edit entities",
	}
	cmd.AddCommand(
		newEntitySearchCmd(),
		newEntityShowCmd(),
		newEntityTypeCmd(),
		newEntityFlaggedCmd(),
		newEntityEditCmd(),
	)
	return cmd
}

func newEntitySearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <prefix>",
		Short: "Find entities by name prefix",
		Long: `Find entities whose name starts with prefix.

Matching ignores case, accents and repeated spaces.

Examples:
  muleta entity search kant
  muleta entity search "critica da" --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entities, err := a.Store.SearchPrefix(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}
			return printEntities(cmd, entities)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func newEntityTypeCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "type <type>",
		Short: "List entities of one type",
		Long: `List entities of one type. Portuguese and English names are accepted
(conceito/concept, pessoa/person, teoria/theory, ...).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, ok := models.LookupEntityType(args[0])
			if !ok {
				return fmt.Errorf("unknown entity type %q", args[0])
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entities, err := a.Store.ListByType(cmd.Context(), entityType, limit)
			if err != nil {
				return fmt.Errorf("listing entities: %w", err)
			}
			return printEntities(cmd, entities)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of results")
	return cmd
}

func newEntityFlaggedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flagged",
		Short: "List stub entities awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entities, err := a.Store.ListFlagged(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing flagged entities: %w", err)
			}
			return printEntities(cmd, entities)
		},
	}
}

func newEntityShowCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show an entity with its observations and neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			ctx := cmd.Context()

			entity, err := resolveEntity(cmd, a.Store, args[0])
			if err != nil {
				return err
			}
			observations, err := a.Store.Observations(ctx, entity.ID)
			if err != nil {
				return fmt.Errorf("loading observations: %w", err)
			}
			hood, err := a.Store.Neighbors(ctx, entity.ID, depth)
			if err != nil {
				return fmt.Errorf("loading neighbors: %w", err)
			}

			if structured() {
				return printStructured(cmd.OutOrStdout(), map[string]any{
					"entity":       entity,
					"observations": observations,
					"neighbors":    hood.Entities,
					"relations":    hood.Relations,
				})
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (%s)\n", entity.Name, entity.Type)
			_, _ = fmt.Fprintf(out, "ID: %s\n", entity.ID)
			if entity.NeedsReview {
				_, _ = fmt.Fprintln(out, "Flagged: needs review")
			}
			if entity.Description != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", entity.Description)
			}
			if len(observations) > 0 {
				_, _ = fmt.Fprintf(out, "\nObservations (%d):\n", len(observations))
				for _, o := range observations {
					_, _ = fmt.Fprintf(out, "  - %s\n", o.Content)
				}
			}
			if len(hood.Relations) > 0 {
				names := map[string]string{entity.ID: entity.Name}
				for _, e := range hood.Entities {
					names[e.ID] = e.Name
				}
				_, _ = fmt.Fprintf(out, "\nRelations (%d):\n", len(hood.Relations))
				for _, r := range hood.Relations {
					_, _ = fmt.Fprintf(out, "  %s -[%s]-> %s\n", names[r.FromEntityID], r.Type, names[r.ToEntityID])
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "Neighborhood depth in relation hops")
	return cmd
}

func newEntityEditCmd() *cobra.Command {
	var (
		name        string
		entityType  string
		description string
		reviewed    bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Rename, retype or describe an entity",
		Long: `Apply an explicit edit to an entity. Only the flags given are changed.

Examples:
  muleta entity edit ent_1a2b --type pessoa --reviewed
  muleta entity edit "Critica" --name "Crítica da Razão Pura"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit sqlite.EntityEdit
			flags := cmd.Flags()
			if flags.Changed("name") {
				edit.Name = &name
			}
			if flags.Changed("type") {
				t, ok := models.LookupEntityType(entityType)
				if !ok {
					return fmt.Errorf("unknown entity type %q", entityType)
				}
				edit.Type = &t
			}
			if flags.Changed("description") {
				edit.Description = &description
			}
			if flags.Changed("reviewed") {
				needsReview := !reviewed
				edit.NeedsReview = &needsReview
			}
			if edit == (sqlite.EntityEdit{}) {
				return fmt.Errorf("nothing to edit: pass --name, --type, --description or --reviewed")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			entity, err := resolveEntity(cmd, a.Store, args[0])
			if err != nil {
				return err
			}
			updated, err := a.Store.EditEntity(cmd.Context(), entity.ID, edit)
			if err != nil {
				return fmt.Errorf("editing entity: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), updated)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.Name, updated.Type)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&entityType, "type", "", "New entity type")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().BoolVar(&reviewed, "reviewed", false, "Mark the entity as reviewed (clears the stub flag)")
	return cmd
}

// resolveEntity looks ref up as an id, then as a name
func resolveEntity(cmd *cobra.Command, store *sqlite.Store, ref string) (*models.Entity, error) {
	entity, err := store.GetEntity(cmd.Context(), ref)
	if errors.Is(err, models.ErrNotFound) {
		entity, err = store.GetEntityByName(cmd.Context(), ref)
	}
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	return entity, nil
}

func printEntities(cmd *cobra.Command, entities []models.Entity) error {
	if structured() {
		if entities == nil {
			entities = []models.Entity{}
		}
		return printStructured(cmd.OutOrStdout(), entities)
	}
	if len(entities) == 0 {
		if !quiet {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No entities found")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "NAME\tTYPE\tFLAGGED\tUPDATED\tID\n")
	_, _ = fmt.Fprintf(w, "----\t----\t-------\t-------\t--\n")
	for _, e := range entities {
		flagged := ""
		if e.NeedsReview {
			flagged = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(e.Name, 40), e.Type, flagged, formatTime(e.UpdatedAt), e.ID)
	}
	_ = w.Flush()

	if !quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d entit(ies)\n", len(entities))
	}
	return nil
}
