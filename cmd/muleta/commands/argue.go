// ABOUTME: CLI commands for argument graphs
// ABOUTME: create, list, node, connect, show and export subcommands
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

// NewArgueCmd creates the argue command group
func NewArgueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "argue",
		Short: "Build argument graphs over entities",
		Long: `Build arguments as graphs of premises, inferences, conclusions,
evidence and objections connected by supports, contradicts, leads_to
and evidence_for edges. Cycles are allowed.`,
	}
	cmd.AddCommand(
		newArgueCreateCmd(),
		newArgueListCmd(),
		newArgueNodeCmd(),
		newArgueConnectCmd(),
		newArgueShowCmd(),
		newArgueExportCmd(),
	)
	return cmd
}

func newArgueCreateCmd() *cobra.Command {
	var (
		entityIDs   []string
		description string
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an argument sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			seq, err := a.Arguments.CreateSequence(cmd.Context(), args[0], entityIDs, description)
			if err != nil {
				return fmt.Errorf("creating argument: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), seq)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created argument %q: %s\n", seq.Title, seq.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&entityIDs, "entity", nil, "Entity ids the argument is about (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "Argument description")
	return cmd
}

func newArgueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List argument sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sequences, err := a.Store.ListSequences(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing arguments: %w", err)
			}
			if structured() {
				if sequences == nil {
					sequences = []models.ArgumentSequence{}
				}
				return printStructured(cmd.OutOrStdout(), sequences)
			}
			if len(sequences) == 0 {
				if !quiet {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No arguments found")
				}
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TITLE\tENTITIES\tCREATED\tID\n")
			_, _ = fmt.Fprintf(w, "-----\t--------\t-------\t--\n")
			for _, s := range sequences {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", truncate(s.Title, 40), len(s.EntityIDs), formatTime(s.CreatedAt), s.ID)
			}
			return w.Flush()
		},
	}
}

func newArgueNodeCmd() *cobra.Command {
	var (
		nodeType string
		content  string
		entityID string
		x, y     float64
	)
	cmd := &cobra.Command{
		Use:   "node <sequence-id>",
		Short: "Add a node to an argument",
		Long: `Add a node to an argument.

Examples:
  muleta argue node seq_1a2b --type premise --content "Todo homem é mortal"
  muleta argue node seq_1a2b --type conclusion --content "Sócrates é mortal" --x 200 --y 80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			node, err := a.Arguments.AddNode(cmd.Context(), args[0], core.NodeInput{
				NodeType: models.NodeType(nodeType),
				Content:  content,
				EntityID: entityID,
				Position: models.Position{X: x, Y: y},
			})
			if err != nil {
				return fmt.Errorf("adding node: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), node)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s node: %s\n", node.NodeType, node.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nodeType, "type", "", "premise, inference, conclusion, evidence or objection")
	cmd.Flags().StringVar(&content, "content", "", "Statement text")
	cmd.Flags().StringVar(&entityID, "entity", "", "Entity the node refers to")
	cmd.Flags().Float64Var(&x, "x", 0, "Layout x position")
	cmd.Flags().Float64Var(&y, "y", 0, "Layout y position")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newArgueConnectCmd() *cobra.Command {
	var (
		connType string
		strength float64
	)
	cmd := &cobra.Command{
		Use:   "connect <sequence-id> <from-node> <to-node>",
		Short: "Connect two nodes of an argument",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			in := core.ConnectionInput{
				FromNodeID:     args[1],
				ToNodeID:       args[2],
				ConnectionType: models.ConnectionType(connType),
			}
			if cmd.Flags().Changed("strength") {
				in.Strength = &strength
			}
			conn, err := a.Arguments.Connect(cmd.Context(), args[0], in)
			if err != nil {
				return fmt.Errorf("connecting nodes: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), conn)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s -[%s %.2f]-> %s\n",
				conn.FromNodeID, conn.ConnectionType, conn.Strength, conn.ToNodeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&connType, "type", string(models.ConnSupports), "supports, contradicts, leads_to or evidence_for")
	cmd.Flags().Float64Var(&strength, "strength", core.DefaultConnectionStrength, "Edge strength between 0 and 1")
	return cmd
}

func newArgueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <sequence-id>",
		Short: "Show an argument's nodes and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			graph, err := a.Arguments.Graph(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading argument: %w", err)
			}
			if structured() {
				return printStructured(cmd.OutOrStdout(), graph)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n", graph.Sequence.Title)
			if graph.Sequence.Description != "" {
				_, _ = fmt.Fprintf(out, "%s\n", graph.Sequence.Description)
			}
			_, _ = fmt.Fprintln(out)
			content := make(map[string]string, len(graph.Nodes))
			for _, n := range graph.Nodes {
				content[n.ID] = n.Content
				_, _ = fmt.Fprintf(out, "[%s] %s  (%s)\n", n.NodeType, n.Content, n.ID)
			}
			if len(graph.Connections) > 0 {
				_, _ = fmt.Fprintln(out)
			}
			for _, c := range graph.Connections {
				_, _ = fmt.Fprintf(out, "%q -[%s %.2f]-> %q\n",
					truncate(content[c.FromNodeID], 30), c.ConnectionType, c.Strength, truncate(content[c.ToNodeID], 30))
			}
			return nil
		},
	}
}

func newArgueExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <sequence-id>",
		Short: "Export an argument graph as json or yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return a.Arguments.Export(cmd.Context(), w, args[0], format)
			})
		},
	}
	cmd.Flags().StringVar(&format, "as", sqlite.FormatJSON, "Export format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
