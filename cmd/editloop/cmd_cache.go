package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/editloop/editloop/internal/cache"
	"github.com/editloop/editloop/internal/spinner"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
		Long: `Manage the response cache of an instruction file.

The cache stores one prompt/response pair per model call, keyed by prompt
text and model, under .editloop/<instruction-file-stem>/cache. A rerun
whose prompts are unchanged replays responses instead of calling the
model. push and pull mirror the cache through Azure Blob Storage (account
from EDITLOOP_STORAGE_ACCOUNT) so a team shares responses.`,
	}

	cmd.AddCommand(newCacheClearCommand())
	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCachePushCommand())
	cmd.AddCommand(newCachePullCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <instruction-file>",
		Short: "Remove all cached responses",
		Long: `Remove all cached prompt/response pairs for an instruction file.

Only cache artifacts are removed; anything else in the directory is left
alone. The next run will call the model for every prompt.`,
		Args: cobra.ExactArgs(1),
		RunE: cacheClearE,
	}
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <instruction-file>",
		Short: "Show cache entry counts and size",
		Args:  cobra.ExactArgs(1),
		RunE:  cacheStatsE,
	}
}

func newCachePushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push <instruction-file>",
		Short: "Upload cache artifacts missing from the remote mirror",
		Args:  cobra.ExactArgs(1),
		RunE:  cachePushE,
	}
}

func newCachePullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <instruction-file>",
		Short: "Download remote cache artifacts missing locally",
		Args:  cobra.ExactArgs(1),
		RunE:  cachePullE,
	}
}

// cacheFor opens the cache belonging to the instruction file. The file must
// exist so a typo in the path cannot silently manage an empty cache.
func cacheFor(path string) (*cache.ResponseCache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("instruction file: %w", err)
	}
	return cache.New(layoutFor(path).CacheDir())
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	c, err := cacheFor(args[0])
	if err != nil {
		return err
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", c.Dir())
	return nil
}

func cacheStatsE(cmd *cobra.Command, args []string) error {
	c, err := cacheFor(args[0])
	if err != nil {
		return err
	}
	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache: %s\n", c.Dir())
	fmt.Fprintf(out, "  Response pairs: %d\n", stats.Pairs)
	fmt.Fprintf(out, "  Orphaned files: %d\n", stats.Orphans)
	fmt.Fprintf(out, "  Total size:     %s\n", humanize.Bytes(uint64(stats.Bytes)))
	return nil
}

func cachePushE(cmd *cobra.Command, args []string) error {
	return runMirror(cmd, args[0], "Pushed", (*cache.Mirror).Push)
}

func cachePullE(cmd *cobra.Command, args []string) error {
	return runMirror(cmd, args[0], "Pulled", (*cache.Mirror).Pull)
}

func runMirror(cmd *cobra.Command, path, verb string, transfer func(*cache.Mirror, context.Context, *cache.ResponseCache) (int, error)) error {
	c, err := cacheFor(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	spin := spinner.Start(out, "Connecting to storage mirror...")
	m, err := cache.NewMirror()
	if err != nil {
		spin.Stop()
		return err
	}

	spin.Update("Transferring cache artifacts...")
	n, err := transfer(m, cmd.Context(), c)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("mirroring cache: %w", err)
	}

	fmt.Fprintf(out, "%s %d artifact(s): %s\n", verb, n, c.Dir())
	return nil
}
