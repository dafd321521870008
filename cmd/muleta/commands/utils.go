// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Opens the wired App, reads input text, and renders text, json or yaml output
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/harper/muleta/internal/app"
	"github.com/harper/muleta/internal/config"
	"github.com/harper/muleta/internal/logger"
)

// openApp loads .env and configuration and opens the store. Callers close it.
func openApp() (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a, err := app.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return a, nil
}

func newLogger(mode string) (*logger.Logger, error) {
	return logger.NewWithLevel(mode, cliLogLevel())
}

func cliLogLevel() zapcore.Level {
	switch {
	case quiet:
		return zapcore.ErrorLevel
	case verbose:
		return zapcore.DebugLevel
	default:
		return zapcore.WarnLevel
	}
}

// structured reports whether output should be machine readable
func structured() bool {
	return outputFormat == "json" || outputFormat == "yaml"
}

// printStructured writes v as json or yaml according to --format
func printStructured(w io.Writer, v any) error {
	if outputFormat == "yaml" {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return encoder.Close()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// readInput returns the text from --file, the first argument, or stdin
func readInput(file string, args []string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case file != "":
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		text = string(data)
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text provided")
	}
	return text, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display relative to now
func formatTime(t time.Time) string {
	diff := time.Since(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// formatDay renders a scheduling day
func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// writeOutput writes via fn to path, or to w when path is empty
func writeOutput(w io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(w)
	}
	file, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
