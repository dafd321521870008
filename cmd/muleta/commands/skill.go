// ABOUTME: Install Claude Code skill for muleta
// ABOUTME: Embeds and installs the skill definition to ~/.claude/skills/

package commands

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed skill/SKILL.md
var skillFS embed.FS

// NewInstallSkillCmd creates the install-skill command
func NewInstallSkillCmd() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "install-skill",
		Short: "Install Claude Code skill",
		Long: `Install the muleta skill for Claude Code.

This copies the skill definition to ~/.claude/skills/muleta/
so Claude Code can ingest notes and run study sessions with muleta.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			return installSkill(cmd, home, cmd.InOrStdin(), skipConfirm)
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func installSkill(cmd *cobra.Command, home string, in io.Reader, skipConfirm bool) error {
	out := cmd.OutOrStdout()
	skillDir := filepath.Join(home, ".claude", "skills", "muleta")
	skillPath := filepath.Join(skillDir, "SKILL.md")

	_, _ = fmt.Fprintln(out, "┌─────────────────────────────────────────────────────────────┐")
	_, _ = fmt.Fprintln(out, "│             Muleta Skill for Claude Code                    │")
	_, _ = fmt.Fprintln(out, "└─────────────────────────────────────────────────────────────┘")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "This will install the muleta skill, enabling Claude Code to:")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "  • Turn reading notes into a knowledge graph")
	_, _ = fmt.Fprintln(out, "  • Generate and review spaced-repetition cards")
	_, _ = fmt.Fprintln(out, "  • Map arguments and surface knowledge gaps")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Destination:")
	_, _ = fmt.Fprintf(out, "  %s\n", skillPath)
	_, _ = fmt.Fprintln(out)

	if _, err := os.Stat(skillPath); err == nil {
		_, _ = fmt.Fprintln(out, "Note: A skill file already exists and will be overwritten.")
		_, _ = fmt.Fprintln(out)
	}

	if !skipConfirm {
		_, _ = fmt.Fprint(out, "Install the muleta skill? [y/N] ")
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read response: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			_, _ = fmt.Fprintln(out, "Installation cancelled.")
			return nil
		}
		_, _ = fmt.Fprintln(out)
	}

	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		return fmt.Errorf("failed to read embedded skill: %w", err)
	}
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		return fmt.Errorf("failed to create skill directory: %w", err)
	}
	if err := os.WriteFile(skillPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write skill file: %w", err)
	}

	_, _ = fmt.Fprintln(out, "✓ Installed muleta skill successfully!")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Try asking Claude: \"Ingest these notes on Kant\" or \"Quiz me on my due cards\"")
	return nil
}
