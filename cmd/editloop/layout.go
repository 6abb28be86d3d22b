package main

import (
	"path/filepath"
	"strings"
)

// runRoot holds per-instruction-file run state under the working directory.
const runRoot = ".editloop"

// runLayout locates the state directories for one instruction file. Runs
// against the same file (keyed by its stem) share logs and cache across
// invocations, so a rerun replays cached responses.
type runLayout struct {
	dir string
}

func layoutFor(instructionPath string) runLayout {
	base := filepath.Base(instructionPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return runLayout{dir: filepath.Join(runRoot, stem)}
}

func (l runLayout) LogsDir() string  { return filepath.Join(l.dir, "logs") }
func (l runLayout) CacheDir() string { return filepath.Join(l.dir, "cache") }
