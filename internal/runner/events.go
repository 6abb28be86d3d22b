package runner

import "github.com/editloop/editloop/internal/instructions"

// EventType tags a progress event.
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventCommandStarted   EventType = "command_started"
	EventFileStarted      EventType = "file_started"
	EventCycleCompleted   EventType = "cycle_completed"
	EventFileCompleted    EventType = "file_completed"
	EventCommandCompleted EventType = "command_completed"
	EventRunCompleted     EventType = "run_completed"
)

// Event is one progress update. Fields beyond Type are populated where they
// apply: Command and Kind from command_started onward, File and Cycle for
// file-scoped events, Status and Err on completions.
type Event struct {
	Type     EventType
	Command  string
	Kind     instructions.Kind
	File     string
	Cycle    int
	CacheHit bool
	Status   FileStatus
	Err      error
}

// ProgressListener receives progress events. Listeners run on scheduler
// goroutines and must be safe for concurrent calls.
type ProgressListener func(event Event)

// AddProgressListener registers a listener for subsequent events.
func (r *Runner) AddProgressListener(l ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Runner) notifyProgress(event Event) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
