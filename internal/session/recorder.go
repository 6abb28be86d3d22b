package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LogName is the file name of the run record inside a run's logs directory.
const LogName = "session.ndjson"

// Recorder persists run events.
type Recorder interface {
	Record(event Event) error
	Close() error
}

// FileRecorder appends events to a file as newline-delimited JSON. Safe for
// concurrent use.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewFileRecorder opens (or creates) the record at path in append mode.
// Parent directories are created as needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating run record directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening run record: %w", err)
	}

	return &FileRecorder{
		file: f,
		enc:  json.NewEncoder(f),
		path: path,
	}, nil
}

// Record writes one event as one JSON line.
func (r *FileRecorder) Record(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(event)
}

// Close releases the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// Path returns the record's file path.
func (r *FileRecorder) Path() string {
	return r.path
}

// NopRecorder discards all events. It stands in when recording is disabled
// or the record file could not be opened.
type NopRecorder struct{}

func (NopRecorder) Record(Event) error { return nil }
func (NopRecorder) Close() error       { return nil }

// ReadLog parses every event from a run record. Malformed lines are
// skipped.
func ReadLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run record: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run record: %w", err)
	}
	return events, nil
}
