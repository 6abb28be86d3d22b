package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/editloop/editloop/internal/wizard"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter instruction file",
		Long: `Create a starter instruction file through a guided wizard.

The wizard collects one command (id, type, target files, instruction and
the per-type extras) and writes instructions.toml plus the target
directory. Edit the file directly to add more commands.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: initCommandE,
	}

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	instructionsPath := filepath.Join(dir, "instructions.toml")
	if _, err := os.Stat(instructionsPath); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite it", instructionsPath)
	}

	spec, err := wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	content, err := wizard.GenerateInstructionsTOML(spec)
	if err != nil {
		return fmt.Errorf("generating instruction file: %w", err)
	}
	if err := os.WriteFile(instructionsPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing instruction file: %w", err)
	}

	targetDir := filepath.Join(dir, spec.TargetDir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized:")                                //nolint:errcheck
	fmt.Fprintf(out, "  %s\n", instructionsPath)                     //nolint:errcheck
	fmt.Fprintf(out, "  %s%c\n", targetDir, filepath.Separator)      //nolint:errcheck
	fmt.Fprintf(out, "\nReview it with 'editloop check %s', then run 'editloop run %s'.\n", //nolint:errcheck
		instructionsPath, instructionsPath)
	return nil
}
