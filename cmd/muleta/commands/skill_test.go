// ABOUTME: Tests for the install-skill command
// ABOUTME: Verifies skill installation, confirmation handling, and file content

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestNewInstallSkillCmd(t *testing.T) {
	cmd := NewInstallSkillCmd()

	if cmd.Use != "install-skill" {
		t.Errorf("Use = %q, want %q", cmd.Use, "install-skill")
	}
	yesFlag := cmd.Flags().Lookup("yes")
	if yesFlag == nil {
		t.Fatal("--yes flag should exist")
	}
	if yesFlag.Shorthand != "y" {
		t.Errorf("--yes shorthand = %q, want %q", yesFlag.Shorthand, "y")
	}
}

func TestInstallSkill_SuccessfulInstallation(t *testing.T) {
	home := t.TempDir()
	cmd := &cobra.Command{}
	var output bytes.Buffer
	cmd.SetOut(&output)

	if err := installSkill(cmd, home, strings.NewReader(""), true); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(home, ".claude", "skills", "muleta", "SKILL.md"))
	if err != nil {
		t.Fatalf("skill file not written: %v", err)
	}
	if !strings.Contains(string(content), "name: muleta") {
		t.Error("skill file should carry the muleta frontmatter")
	}
	if !strings.Contains(output.String(), "Installed muleta skill successfully") {
		t.Errorf("unexpected output: %s", output.String())
	}
}

func TestInstallSkill_Confirmation(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		installed bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			cmd := &cobra.Command{}
			var output bytes.Buffer
			cmd.SetOut(&output)

			if err := installSkill(cmd, home, strings.NewReader(tt.answer), false); err != nil {
				t.Fatalf("installSkill failed: %v", err)
			}
			_, err := os.Stat(filepath.Join(home, ".claude", "skills", "muleta", "SKILL.md"))
			if tt.installed && err != nil {
				t.Errorf("expected skill to be installed: %v", err)
			}
			if !tt.installed && err == nil {
				t.Error("expected installation to be cancelled")
			}
		})
	}
}

func TestInstallSkill_Overwrites(t *testing.T) {
	home := t.TempDir()
	skillDir := filepath.Join(home, ".claude", "skills", "muleta")
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{}
	var output bytes.Buffer
	cmd.SetOut(&output)
	if err := installSkill(cmd, home, strings.NewReader(""), true); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}
	if !strings.Contains(output.String(), "already exists") {
		t.Error("should warn about overwriting")
	}
	content, _ := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
	if string(content) == "old" {
		t.Error("skill file should be overwritten")
	}
}
