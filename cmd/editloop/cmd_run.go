package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/editloop/editloop/internal/cache"
	"github.com/editloop/editloop/internal/engine"
	"github.com/editloop/editloop/internal/instructions"
	"github.com/editloop/editloop/internal/llm"
	"github.com/editloop/editloop/internal/logging"
	"github.com/editloop/editloop/internal/prompt"
	"github.com/editloop/editloop/internal/runner"
	"github.com/editloop/editloop/internal/session"
	"github.com/editloop/editloop/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	maxWorkers  int
	noCache     bool
	testTimeout time.Duration
)

// newModelClient is a test hook for replacing the provider router.
var newModelClient = func() (llm.Client, func() error) {
	router := llm.NewRouter()
	return llm.NewRetryClient(router), router.Close
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <instruction-file> [selector...]",
		Short: "Run commands from an instruction file",
		Long: `Run commands from an instruction file against its target directory.

With no selectors every command runs, in file order. Selectors pick a
subset: a command id ("fix_tests"), an inclusive id range ("gen-fix_tests"),
a tail wildcard ("gen*" for that command and everything after it), or "*"
for all. Selected commands still run in file order.

Logs, prompt/output artifacts, and the response cache live under
.editloop/<instruction-file-stem>/ relative to the working directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().IntVar(&maxWorkers, "max-workers", runner.DefaultWorkers, "Concurrent file sessions per command")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Call the model even when a cached response exists")
	cmd.Flags().DurationVar(&testTimeout, "test-timeout", 0, "Timeout per test command, e.g. 30s (0 = no limit)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	file, err := instructions.Load(args[0])
	if err != nil {
		return err
	}

	selected, err := instructions.Select(args[1:], file.Commands)
	if err != nil {
		return err
	}

	ws := workspace.New(file.Target.Directory)
	if err := ws.Seed(file.Target.Source); err != nil {
		return fmt.Errorf("preparing target directory: %w", err)
	}

	layout := layoutFor(args[0])

	cacheDir := layout.CacheDir()
	if noCache {
		cacheDir = ""
	}
	responses, err := cache.New(cacheDir)
	if err != nil {
		return err
	}

	logs, err := logging.NewFactory(layout.LogsDir())
	if err != nil {
		return err
	}
	defer logs.Close() //nolint:errcheck // sync failures at exit are not actionable

	// A broken recorder downgrades to no recording; the run itself is
	// worth more than its record.
	var recorder session.Recorder
	recorder, err = session.NewFileRecorder(filepath.Join(layout.LogsDir(), session.LogName))
	if err != nil {
		slog.Warn("run recording disabled", "error", err)
		recorder = session.NopRecorder{}
	}
	defer recorder.Close() //nolint:errcheck

	client, closeClient := newModelClient()
	defer closeClient() //nolint:errcheck

	eng := engine.New(engine.Config{
		Workspace:   ws,
		Macros:      prompt.NewMacros(file.SharedPrompts),
		Cache:       responses,
		Client:      client,
		Logs:        logs,
		TestTimeout: testTimeout,
	})

	sched := runner.New(eng, runner.WithWorkers(maxWorkers))
	out := cmd.OutOrStdout()
	sched.AddProgressListener(consoleListener(out))
	sched.AddProgressListener(recordListener(recorder))

	fmt.Fprintf(out, "Instructions: %s\n", args[0])
	fmt.Fprintf(out, "Target:       %s\n", file.Target.Directory)
	fmt.Fprintf(out, "Commands:     %d of %d\n", len(selected), len(file.Commands))
	if responses.Dir() != "" {
		fmt.Fprintf(out, "Cache:        %s\n", responses.Dir())
	}
	fmt.Fprintln(out)

	result, runErr := sched.Run(cmd.Context(), selected)

	printRunSummary(out, result)

	if runErr != nil {
		return &RunFailedError{Message: fmt.Sprintf("run aborted: %v", runErr)}
	}
	if !result.Succeeded() {
		return &RunFailedError{Message: fmt.Sprintf("run completed with %d failed file(s)", countFailedFiles(result))}
	}
	return nil
}

func countFailedFiles(result *runner.Result) int {
	n := 0
	for _, c := range result.Commands {
		for _, f := range c.Files {
			if f.Status != runner.StatusSucceeded {
				n++
			}
		}
	}
	return n
}
