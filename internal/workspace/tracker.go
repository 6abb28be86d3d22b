package workspace

// Tracker deduplicates context snapshots across the cycles of one
// file-editing session, so prompts only repeat files that changed. A
// snapshot is emitted when its name has not been sent yet or its
// modification time differs from the last send.
type Tracker struct {
	dir  *Dir
	sent map[string]int64
}

func NewTracker(d *Dir) *Tracker {
	return &Tracker{dir: d, sent: make(map[string]int64)}
}

// Diff gathers fresh snapshots for the patterns and returns only the new or
// changed ones, registering each as sent. The exclude name never appears in
// the result; the file under edit gets its own prompt section.
func (t *Tracker) Diff(patterns []string, exclude string) ([]Snapshot, error) {
	snaps, err := t.dir.Snapshots(patterns)
	if err != nil {
		return nil, err
	}

	var fresh []Snapshot
	for _, s := range snaps {
		if s.Filename == exclude {
			continue
		}
		if last, ok := t.sent[s.Filename]; ok && last == s.ModTime {
			continue
		}
		t.sent[s.Filename] = s.ModTime
		fresh = append(fresh, s)
	}
	return fresh, nil
}
