// Package session records what a run did: one timestamped NDJSON event per
// progress notification, appended to the run's log directory for later
// inspection and tooling.
package session

import "time"

// Event is one line in the run record. Only the fields that apply to the
// event type are set; the rest are omitted from the JSON.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Command   string    `json:"command,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	File      string    `json:"file,omitempty"`
	Cycle     int       `json:"cycle,omitempty"`
	CacheHit  bool      `json:"cache_hit,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Stamp sets the event's timestamp to the current UTC time and returns it.
func (e Event) Stamp() Event {
	e.Timestamp = time.Now().UTC()
	return e
}
