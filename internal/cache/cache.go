// Package cache stores model responses keyed by the exact prompt that
// produced them. Each entry is a pair of plain-text files in one flat
// directory, so entries double as human-readable run artifacts. There is no
// cross-process locking; concurrent runs that race on the same digest write
// identical content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/editloop/editloop/internal/transcript"
)

const (
	promptSuffix   = ".prompt.txt"
	responseSuffix = ".response.txt"
)

// ResponseCache is a content-addressed store of (prompt, response) pairs.
// An empty directory name disables it: every lookup misses and nothing is
// written.
type ResponseCache struct {
	dir string
	mu  sync.Mutex
}

// New creates the cache directory if needed. dir may be empty to disable
// caching.
func New(dir string) (*ResponseCache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	return &ResponseCache{dir: dir}, nil
}

// Dir returns the cache directory, empty when caching is disabled.
func (c *ResponseCache) Dir() string {
	return c.dir
}

// Digest computes the cache key for one model call. The key covers the
// rendered transcript and the model name, so a change to either yields a
// distinct entry.
func Digest(promptText, model string) string {
	h := sha256.New()
	writeString(h, promptText)
	writeString(h, model)
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the cached response for the transcript if both
// artifact files exist, otherwise it runs compute and stores the result.
// The prompt artifact is written before the response artifact so a pair on
// disk always means the response matched that prompt. hit reports whether
// the response came from the cache.
func (c *ResponseCache) GetOrCompute(tr *transcript.Transcript, model string, compute func() (string, error)) (response string, hit bool, err error) {
	if c.dir == "" {
		out, err := compute()
		return out, false, err
	}

	text := tr.Text()
	digest := Digest(text, model)

	if cached, ok := c.lookup(digest); ok {
		return cached, true, nil
	}

	out, err := compute()
	if err != nil {
		return "", false, err
	}
	if err := c.store(digest, text, out); err != nil {
		return "", false, err
	}
	return out, false, nil
}

func (c *ResponseCache) lookup(digest string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.promptPath(digest)); err != nil {
		return "", false
	}
	data, err := os.ReadFile(c.responsePath(digest))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *ResponseCache) store(digest, promptText, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.WriteFile(c.promptPath(digest), []byte(promptText), 0644); err != nil {
		return fmt.Errorf("writing prompt artifact: %w", err)
	}
	if err := os.WriteFile(c.responsePath(digest), []byte(response), 0644); err != nil {
		return fmt.Errorf("writing response artifact: %w", err)
	}
	return nil
}

// Stats summarizes the on-disk state of the cache.
type Stats struct {
	Pairs   int   // complete prompt/response pairs
	Orphans int   // artifacts missing their counterpart
	Bytes   int64 // total artifact size
}

// Stats scans the cache directory. A missing directory counts as empty.
func (c *ResponseCache) Stats() (Stats, error) {
	var stats Stats
	if c.dir == "" {
		return stats, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}

	type pair struct{ prompt, response bool }
	seen := map[string]*pair{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		digest, kind, ok := splitArtifactName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return stats, fmt.Errorf("inspecting cache file: %w", err)
		}
		stats.Bytes += info.Size()

		p := seen[digest]
		if p == nil {
			p = &pair{}
			seen[digest] = p
		}
		if kind == promptSuffix {
			p.prompt = true
		} else {
			p.response = true
		}
	}

	for _, p := range seen {
		if p.prompt && p.response {
			stats.Pairs++
		} else {
			stats.Orphans++
		}
	}
	return stats, nil
}

// Clear deletes all cache artifacts. It refuses to touch a directory holding
// anything other than prompt/response artifacts.
func (c *ResponseCache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to clear")
		}
		if _, _, ok := splitArtifactName(entry.Name()); !ok {
			return fmt.Errorf("cache directory contains non-cache file %q - refusing to clear", entry.Name())
		}
	}

	for _, entry := range entries {
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("removing cache file: %w", err)
		}
	}
	return nil
}

func (c *ResponseCache) promptPath(digest string) string {
	return filepath.Join(c.dir, digest+promptSuffix)
}

func (c *ResponseCache) responsePath(digest string) string {
	return filepath.Join(c.dir, digest+responseSuffix)
}

// splitArtifactName splits "<digest>.prompt.txt" or "<digest>.response.txt"
// into its digest and suffix.
func splitArtifactName(name string) (digest, kind string, ok bool) {
	for _, suffix := range []string{promptSuffix, responseSuffix} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return strings.TrimSuffix(name, suffix), suffix, true
		}
	}
	return "", "", false
}

// writeString frames s with a null byte to prevent hash collisions between
// adjacent fields.
func writeString(h hash.Hash, s string) {
	h.Write([]byte(s + "\x00"))
}
