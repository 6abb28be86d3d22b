package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/editloop/editloop/internal/instructions"
	"github.com/editloop/editloop/internal/runner"
	"github.com/editloop/editloop/internal/session"
)

// consoleListener renders progress events as console lines. Events arrive
// on scheduler goroutines, so writes serialize through a mutex.
func consoleListener(w io.Writer) runner.ProgressListener {
	var mu sync.Mutex
	return func(ev runner.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch ev.Type {
		case runner.EventCommandStarted:
			fmt.Fprintf(w, "Command '%s' (%s):\n", ev.Command, ev.Kind)
		case runner.EventCycleCompleted:
			cached := ""
			if ev.CacheHit {
				cached = " [cached]"
			}
			fmt.Fprintf(w, "  %s: cycle %d%s\n", ev.File, ev.Cycle, cached)
		case runner.EventFileCompleted:
			switch {
			case ev.Err != nil:
				fmt.Fprintf(w, "  %s: error: %v\n", ev.File, ev.Err)
			case ev.Status == runner.StatusFailed:
				fmt.Fprintf(w, "  %s: still failing after %d cycle(s)\n", ev.File, ev.Cycle)
			case ev.Kind == instructions.KindFeedbackEdit:
				fmt.Fprintf(w, "  %s: done in %d cycle(s)\n", ev.File, ev.Cycle)
			default:
				fmt.Fprintf(w, "  %s: done\n", ev.File)
			}
		case runner.EventCommandCompleted:
			if ev.Status == runner.StatusSucceeded {
				fmt.Fprintf(w, "Command '%s': OK\n", ev.Command)
			} else {
				fmt.Fprintf(w, "Command '%s': ERROR\n", ev.Command)
			}
		}
	}
}

// recordListener forwards progress events to the run recorder. Recording
// failures are logged and dropped; they never disturb the run.
func recordListener(rec session.Recorder) runner.ProgressListener {
	return func(ev runner.Event) {
		e := session.Event{
			Type:     string(ev.Type),
			Command:  ev.Command,
			Kind:     string(ev.Kind),
			File:     ev.File,
			Cycle:    ev.Cycle,
			CacheHit: ev.CacheHit,
			Status:   string(ev.Status),
		}
		if ev.Err != nil {
			e.Error = ev.Err.Error()
		}
		if err := rec.Record(e.Stamp()); err != nil {
			slog.Debug("recording progress event", "error", err)
		}
	}
}

//nolint:errcheck // display function, stdout write errors are not actionable
func printRunSummary(w io.Writer, result *runner.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w, " RUN SUMMARY")
	fmt.Fprintln(w, "="+strings.Repeat("=", 50))
	fmt.Fprintln(w)

	idWidth := len("Command")
	for _, c := range result.Commands {
		if len(c.ID) > idWidth {
			idWidth = len(c.ID)
		}
	}

	fmt.Fprintf(w, "%-*s  %-14s %6s  %s\n", idWidth, "Command", "Kind", "Files", "Status")
	fmt.Fprintln(w, "-"+strings.Repeat("-", 50))

	total, failed := 0, 0
	for _, c := range result.Commands {
		status := "OK"
		if c.Failed() {
			status = "ERROR"
		}
		total += len(c.Files)
		for _, f := range c.Files {
			if f.Status != runner.StatusSucceeded {
				failed++
			}
		}
		fmt.Fprintf(w, "%-*s  %-14s %6d  %s\n", idWidth, c.ID, c.Kind, len(c.Files), status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d command(s), %d file(s), %d failed\n", len(result.Commands), total, failed)

	if failed == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failed files:")
	for _, c := range result.Commands {
		for _, f := range c.Files {
			if f.Status == runner.StatusSucceeded {
				continue
			}
			if f.Err != nil {
				fmt.Fprintf(w, "  - %s: %s: %v\n", c.ID, f.File, f.Err)
			} else {
				fmt.Fprintf(w, "  - %s: %s (tests still failing after %d cycle(s))\n", c.ID, f.File, f.Cycles)
			}
		}
	}
}
