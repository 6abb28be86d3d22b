// Package workspace manages the target directory commands operate on:
// seeding it from source patterns, reading and writing target files, and
// gathering the context snapshots that prompts embed.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are directory names excluded from the file inventory.
var skipDirs = map[string]bool{
	"log":         true,
	"logs":        true,
	"cache":       true,
	"__pycache__": true,
}

// Dir is the directory a command's target files live in. All relative names
// and context patterns resolve against it.
type Dir struct {
	path string
}

func New(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Path() string { return d.path }

// Seed creates the directory if needed and copies files matching the source
// patterns into it, flattened to their base names. Patterns resolve against
// the current working directory. A directory that already has content is
// left untouched so reruns never clobber prior edits.
func (d *Dir) Seed(patterns []string) error {
	entries, err := os.ReadDir(d.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(d.path, 0755); err != nil {
			return fmt.Errorf("creating target directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading target directory: %w", err)
	case len(entries) > 0:
		slog.Info("target directory is not empty, skipping source copy", "dir", d.path)
		return nil
	}
	return d.copyFiles(patterns)
}

func (d *Dir) copyFiles(patterns []string) error {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("resolving source pattern %q: %w", pattern, err)
		}
		for _, src := range matches {
			info, err := os.Stat(src)
			if err != nil {
				return fmt.Errorf("inspecting source %s: %w", src, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("reading source %s: %w", src, err)
			}
			dest := filepath.Join(d.path, filepath.Base(src))
			if err := os.WriteFile(dest, data, 0644); err != nil {
				return fmt.Errorf("copying %s to %s: %w", src, dest, err)
			}
			slog.Debug("copied source file", "src", src, "dest", dest)
		}
	}
	return nil
}

// Exists reports whether name is a regular file under the directory.
func (d *Dir) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(d.path, name))
	return err == nil && info.Mode().IsRegular()
}

// ReadFile returns the content of a target file.
func (d *Dir) ReadFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return "", fmt.Errorf("reading target file: %w", err)
	}
	return string(data), nil
}

// WriteFile replaces the content of a target file, creating it and any
// parent directories as needed.
func (d *Dir) WriteFile(name, content string) error {
	path := filepath.Join(d.path, name)
	if parent := filepath.Dir(path); parent != d.path {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("creating parent directory for %s: %w", name, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing target file: %w", err)
	}
	return nil
}

// Filelist renders the directory's file inventory, one line per file in the
// form "<path> - <n> bytes" with paths relative to the directory. Log and
// cache directories are skipped.
func (d *Dir) Filelist() (string, error) {
	var lines []string
	err := filepath.WalkDir(d.path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.path && skipDirs[entry.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.path, path)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s - %d bytes", rel, info.Size()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("listing target files: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
