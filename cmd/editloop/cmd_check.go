package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/editloop/editloop/internal/instructions"
	"github.com/editloop/editloop/internal/llm"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <instruction-file>",
		Short: "Validate an instruction file without running it",
		Long: `Validate an instruction file without running anything.

Loads the file, applies schema and semantic validation, and prints a
per-command table plus suggested next steps. A file that fails validation
exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheck,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

// --- JSON output structs ---

type checkJSONReport struct {
	Timestamp string              `json:"timestamp"`
	Path      string              `json:"path"`
	Valid     bool                `json:"valid"`
	Target    targetJSON          `json:"target"`
	Commands  []commandJSONReport `json:"commands"`
	NextSteps []string            `json:"nextSteps,omitempty"`
}

type targetJSON struct {
	Directory string   `json:"directory"`
	Source    []string `json:"source,omitempty"`
}

type commandJSONReport struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	TargetFiles  []string `json:"targetFiles"`
	Model        string   `json:"model"`
	PromptModel  string   `json:"promptModel"`
	Context      []string `json:"context,omitempty"`
	TestCommands []string `json:"testCommands,omitempty"`
	MaxRetries   int      `json:"maxRetries,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	file, err := instructions.Load(args[0])
	if err != nil {
		return err
	}

	if format == "json" {
		return outputCheckJSON(cmd, args[0], file)
	}
	displayCheckReport(cmd.OutOrStdout(), args[0], file)
	return nil
}

func outputCheckJSON(cmd *cobra.Command, path string, file *instructions.File) error {
	report := checkJSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Path:      path,
		Valid:     true,
		Target: targetJSON{
			Directory: file.Target.Directory,
			Source:    file.Target.Source,
		},
		NextSteps: generateNextSteps(file),
	}
	for _, c := range file.Commands {
		meta := c.Common()
		cr := commandJSONReport{
			ID:          meta.ID,
			Kind:        string(c.Kind()),
			TargetFiles: meta.TargetFiles,
			Model:       meta.Model,
			PromptModel: meta.PromptModel,
			Context:     meta.Context,
		}
		if fe, ok := c.(*instructions.FeedbackEdit); ok {
			cr.TestCommands = fe.TestCommands
			cr.MaxRetries = fe.MaxRetries
		}
		report.Commands = append(report.Commands, cr)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}

//nolint:errcheck // display function, stdout write errors are not actionable
func displayCheckReport(w io.Writer, path string, file *instructions.File) {
	fmt.Fprintf(w, "\n🔍 Instruction File Check\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	fmt.Fprintf(w, "File:   %s\n", path)
	fmt.Fprintf(w, "Target: %s\n", file.Target.Directory)
	if len(file.Target.Source) > 0 {
		fmt.Fprintf(w, "Source: %s\n", strings.Join(file.Target.Source, ", "))
	}
	fmt.Fprintf(w, "\n")

	idWidth := len("Command")
	modelWidth := len("Model")
	for _, c := range file.Commands {
		meta := c.Common()
		if n := runewidth.StringWidth(meta.ID); n > idWidth {
			idWidth = n
		}
		if n := runewidth.StringWidth(meta.Model); n > modelWidth {
			modelWidth = n
		}
	}

	const kindWidth = 14
	totalWidth := idWidth + kindWidth + modelWidth + 5 + len("Tests/Retries") + 8

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		padRight("Command", idWidth),
		padRight("Kind", kindWidth),
		padRight("Files", 5),
		padRight("Model", modelWidth),
		"Tests/Retries")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth))

	sessions := 0
	for _, c := range file.Commands {
		meta := c.Common()
		sessions += len(meta.TargetFiles)

		loop := "—"
		if fe, ok := c.(*instructions.FeedbackEdit); ok {
			loop = fmt.Sprintf("%d / %d", len(fe.TestCommands), fe.MaxRetries)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			padRight(meta.ID, idWidth),
			padRight(string(c.Kind()), kindWidth),
			padRight(fmt.Sprintf("%d", len(meta.TargetFiles)), 5),
			padRight(meta.Model, modelWidth),
			loop)
	}

	fmt.Fprintf(w, "\n✅ Valid: %d command(s), %d file session(s)\n", len(file.Commands), sessions)

	fmt.Fprintf(w, "\n🎯 Next Steps\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	steps := generateNextSteps(file)
	if len(steps) == 0 {
		fmt.Fprintf(w, "Ready to go:\n")
		fmt.Fprintf(w, "  • Run 'editloop run %s' to execute every command\n", path)
		fmt.Fprintf(w, "  • Run 'editloop run %s <id>' to execute a single command\n", path)
	} else {
		for i, step := range steps {
			fmt.Fprintf(w, "%d. %s\n", i+1, step)
		}
	}
	fmt.Fprintf(w, "\n")
}

// generateNextSteps surfaces conditions that will bite at run time but pass
// validation.
func generateNextSteps(file *instructions.File) []string {
	var steps []string

	// Missing provider credentials are the most common first-run failure.
	missing := map[string]bool{}
	for _, c := range file.Commands {
		meta := c.Common()
		for _, model := range []string{meta.Model, meta.PromptModel} {
			if env := llm.CredentialEnv(model); env != "" && os.Getenv(env) == "" {
				missing[env] = true
			}
		}
	}
	for _, env := range slices.Sorted(maps.Keys(missing)) {
		steps = append(steps, fmt.Sprintf("Set %s (a command routes to that provider)", env))
	}

	for _, c := range file.Commands {
		fe, ok := c.(*instructions.FeedbackEdit)
		if !ok {
			continue
		}
		if len(fe.TargetFiles) > 1 && !referencesFilename(fe.TestCommands) {
			steps = append(steps, fmt.Sprintf(
				"Command '%s' runs identical test commands for each of its %d files; use {{filename}} to scope them",
				fe.ID, len(fe.TargetFiles)))
		}
	}

	if len(file.Target.Source) > 0 {
		if entries, err := os.ReadDir(file.Target.Directory); err == nil && len(entries) > 0 {
			steps = append(steps, fmt.Sprintf(
				"Target directory %s is not empty, so target.source seeding will be skipped", file.Target.Directory))
		}
	}

	return steps
}

func referencesFilename(commands []string) bool {
	for _, c := range commands {
		if strings.Contains(c, "{{filename}}") {
			return true
		}
	}
	return false
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
