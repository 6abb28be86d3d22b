package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FilelistPattern is the context pattern that expands to the directory's
// file inventory instead of matching files.
const FilelistPattern = "{{filelist}}"

// filelistName labels the inventory pseudo-snapshot in prompts.
const filelistName = "list of file names"

// binaryExtensions render as hex dumps instead of text.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".bin": true, ".dat": true, ".pdf": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".iso": true, ".tar": true, ".gz": true, ".zip": true, ".7z": true,
	".rar": true, ".so": true, ".dylib": true, ".class": true, ".jar": true,
	".egg": true,
}

// Snapshot is one context item: a file, or the file inventory, as it looked
// when gathered.
type Snapshot struct {
	// Filename is relative to the target directory. The inventory
	// pseudo-snapshot uses the fixed name "list of file names".
	Filename string

	// Content is the file text, or a hex dump for binary files.
	Content string

	// ModTime is the file's modification time in nanoseconds since the
	// epoch; zero for the inventory pseudo-snapshot.
	ModTime int64
}

// Snapshots gathers context for the given glob patterns, resolved against
// the target directory. Only regular files match; matches arrive in the
// sorted order filepath.Glob yields. Each occurrence of FilelistPattern
// appends one inventory pseudo-snapshot.
func (d *Dir) Snapshots(patterns []string) ([]Snapshot, error) {
	var snaps []Snapshot
	for _, pattern := range patterns {
		if pattern == FilelistPattern {
			listing, err := d.Filelist()
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, Snapshot{Filename: filelistName, Content: listing})
			continue
		}

		matches, err := filepath.Glob(filepath.Join(d.path, pattern))
		if err != nil {
			return nil, fmt.Errorf("resolving context pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("inspecting context file: %w", err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			rel, err := filepath.Rel(d.path, path)
			if err != nil {
				return nil, fmt.Errorf("relativizing context path: %w", err)
			}
			content, err := renderFile(path)
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, Snapshot{
				Filename: rel,
				Content:  content,
				ModTime:  info.ModTime().UnixNano(),
			})
		}
	}
	return snaps, nil
}

func renderFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading context file: %w", err)
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] || !utf8.Valid(data) {
		return hexDump(data), nil
	}
	return string(data), nil
}

// hexDump renders 40 input bytes per row: the printable-ASCII view padded to
// 40 columns, a space, then the bytes in hex.
func hexDump(data []byte) string {
	var rows []string
	for len(data) > 0 {
		n := min(len(data), 40)
		chunk := data[:n]
		data = data[n:]

		ascii := make([]byte, n)
		hexes := make([]string, n)
		for i, b := range chunk {
			if b >= 32 && b <= 126 {
				ascii[i] = b
			} else {
				ascii[i] = '.'
			}
			hexes[i] = fmt.Sprintf("%02x", b)
		}
		rows = append(rows, fmt.Sprintf("%-40s %s", ascii, strings.Join(hexes, " ")))
	}
	return strings.Join(rows, "\n")
}
