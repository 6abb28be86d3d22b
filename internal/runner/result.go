package runner

import "github.com/editloop/editloop/internal/instructions"

// FileStatus is the terminal state of one file session.
type FileStatus string

const (
	StatusSucceeded FileStatus = "succeeded"
	StatusFailed    FileStatus = "failed"
)

// FileResult is the outcome of one file session. A feedback-edit session
// that exhausted its retries reports StatusFailed with a nil Err; Err is
// set only for infrastructure failures.
type FileResult struct {
	File   string
	Status FileStatus
	Cycles int
	Err    error
}

// CommandResult collects the per-file outcomes of one command, indexed in
// target_files order. Err is the error that aborted the command, if any.
type CommandResult struct {
	ID    string
	Kind  instructions.Kind
	Files []FileResult
	Err   error
}

// Failed reports whether any file failed or the command aborted.
func (c CommandResult) Failed() bool {
	if c.Err != nil {
		return true
	}
	for _, f := range c.Files {
		if f.Status != StatusSucceeded {
			return true
		}
	}
	return false
}

// Result is the full run outcome, one entry per executed command in
// selection order. Commands skipped after an abort do not appear.
type Result struct {
	Commands []CommandResult
}

// Succeeded reports whether every file of every executed command succeeded.
func (r *Result) Succeeded() bool {
	for _, c := range r.Commands {
		if c.Failed() {
			return false
		}
	}
	return true
}
