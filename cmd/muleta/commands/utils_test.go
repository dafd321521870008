// ABOUTME: Tests for shared utility functions used by CLI commands
// ABOUTME: Verifies truncate, formatTime, readInput, and validation helpers

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"very short maxLen", "hello", 2, "he"},
		{"maxLen equals 3", "hello", 3, "hel"},
		{"empty string", "", 10, ""},
		{"accented runes kept whole", "Crítica da Razão Pura", 10, "Crítica..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		input    time.Time
		contains string
	}{
		{"just now", now.Add(-30 * time.Second), "just now"},
		{"minutes ago", now.Add(-5 * time.Minute), "m ago"},
		{"hours ago", now.Add(-3 * time.Hour), "h ago"},
		{"days ago", now.Add(-2 * 24 * time.Hour), "d ago"},
		{"weeks ago shows date", now.Add(-14 * 24 * time.Hour), "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTime(tt.input)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("formatTime() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

func TestFormatDay(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := formatDay(day); got != "2026-03-09" {
		t.Errorf("formatDay() = %q", got)
	}
}

func TestValidatePositiveInt(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{1, false},
		{100, false},
		{0, true},
		{-5, true},
	}
	for _, tt := range tests {
		err := validatePositiveInt(tt.n, "limit")
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePositiveInt(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("  Kant e Hegel  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		file    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "file wins", file: path, args: []string{"ignored"}, want: "Kant e Hegel"},
		{name: "args joined", args: []string{"Kant", "escreveu"}, want: "Kant escreveu"},
		{name: "stdin", stdin: "de stdin\n", want: "de stdin"},
		{name: "blank stdin", stdin: "   \n", wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(tt.file, tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readInput: %v", err)
			}
			if got != tt.want {
				t.Errorf("readInput() = %q, want %q", got, tt.want)
			}
		})
	}
}
