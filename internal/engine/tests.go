package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TestRunner executes a command's configured test commands through the
// shell and renders their results into the feedback block fed back to the
// model. Failing tests are input, not errors: a non-zero exit shapes the
// next prompt and nothing else.
type TestRunner struct {
	// Dir is the working directory for every subprocess, normally the
	// target directory.
	Dir string
	// Timeout bounds each individual command; zero means no limit. A
	// command that outlives it is killed and recorded like any other
	// failure.
	Timeout time.Duration
}

// Run executes each command in order via sh -c, substituting {{filename}}
// first, and concatenates the per-command reports. passed is true only
// when every command exited zero.
func (r *TestRunner) Run(ctx context.Context, lg *zap.Logger, commands []string, filename string) (output string, passed bool) {
	var b strings.Builder
	passed = true

	for _, command := range commands {
		resolved := strings.ReplaceAll(command, "{{filename}}", filename)
		lg.Info("running test command", zap.String("command", resolved))

		rc, stdout, stderr := r.runOne(ctx, resolved)
		fmt.Fprintf(&b, "$ %s\nReturn Code: %d\nStdout:\n%s\nStderr:\n%s\n", resolved, rc, stdout, stderr)
		if rc != 0 {
			passed = false
			lg.Debug("test command failed", zap.String("command", resolved), zap.Int("return_code", rc))
		}
	}
	return b.String(), passed
}

// runOne runs a single shell command, capturing both streams. A process
// that could not be started at all reports return code -1 with the launch
// error appended to stderr.
func (r *TestRunner) runOne(ctx context.Context, command string) (rc int, stdout, stderr string) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Dir

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rc = exitErr.ExitCode()
		} else {
			rc = -1
			fmt.Fprintln(&errBuf, err.Error())
		}
	}
	return rc, outBuf.String(), errBuf.String()
}
