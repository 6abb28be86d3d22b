// Package logging builds the per-run log sinks: one leveled log file per
// command plus the prompt and output artifacts written alongside it.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	promptArtifactSuffix = ".llm-prompt.txt"
	outputArtifactSuffix = ".llm-output.txt"
)

// Factory owns the logs directory of one run. It hands out one zap logger
// per command id and records the prompt/output artifact files that make a
// run auditable.
type Factory struct {
	dir string

	mu      sync.Mutex
	loggers map[string]*zap.Logger
	files   []*os.File
}

// NewFactory creates the logs directory if needed.
func NewFactory(dir string) (*Factory, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	return &Factory{dir: dir, loggers: make(map[string]*zap.Logger)}, nil
}

func (f *Factory) Dir() string { return f.dir }

// Command returns the logger writing to "<id>.log". The file is truncated
// on first use within a run; repeat calls share one logger, so concurrent
// file sessions of a command interleave into the same log.
func (f *Factory) Command(id string) (*zap.Logger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lg, ok := f.loggers[id]; ok {
		return lg, nil
	}

	file, err := os.Create(filepath.Join(f.dir, id+".log"))
	if err != nil {
		return nil, fmt.Errorf("creating command log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(file), zapcore.DebugLevel)
	lg := zap.New(core)

	f.loggers[id] = lg
	f.files = append(f.files, file)
	return lg, nil
}

// WritePrompt records the exact prompt text sent for one cycle.
func (f *Factory) WritePrompt(command, file string, cycle int, text string) error {
	return f.writeArtifact(artifactName(command, file, cycle, promptArtifactSuffix), text)
}

// WriteOutput records the raw model reply for one cycle.
func (f *Factory) WriteOutput(command, file string, cycle int, text string) error {
	return f.writeArtifact(artifactName(command, file, cycle, outputArtifactSuffix), text)
}

func (f *Factory) writeArtifact(name, text string) error {
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(text), 0644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	return nil
}

// PurgeFileArtifacts removes the artifacts a (command, file) pair left
// behind in earlier runs, so a session starts with a clean audit trail.
func (f *Factory) PurgeFileArtifacts(command, file string) error {
	matches, err := filepath.Glob(filepath.Join(f.dir, command+"."+file+".*"))
	if err != nil {
		return fmt.Errorf("globbing artifacts: %w", err)
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing artifact: %w", err)
		}
	}
	return nil
}

// Close syncs and closes every command log.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, lg := range f.loggers {
		if err := lg.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, file := range f.files {
		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.loggers = make(map[string]*zap.Logger)
	f.files = nil
	return errors.Join(errs...)
}

// artifactName builds "<command>.<file>.<cycle><suffix>". Cycle 0 omits the
// cycle segment; the single-shot kinds use it.
func artifactName(command, file string, cycle int, suffix string) string {
	if cycle > 0 {
		return fmt.Sprintf("%s.%s.%d%s", command, file, cycle, suffix)
	}
	return command + "." + file + suffix
}
