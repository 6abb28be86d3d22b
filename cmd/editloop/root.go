package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editloop",
		Short: "editloop - batch file generation and editing with LLM feedback loops",
		Long: `editloop drives an LLM through batch file creation and editing.

Commands come from a TOML instruction file. Each command targets one or
more files; feedback-edit commands rerun configured test commands after
every model reply and feed the output back until the tests pass or the
retry budget runs out.`,
		Version: version,
		// main prints errors through its typed dispatch; cobra would
		// print them a second time.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
