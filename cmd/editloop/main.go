package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/editloop/editloop/internal/instructions"
)

// Exit codes: 0 only when every selected command's every file succeeded.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// RunFailedError indicates the run executed but did not fully succeed:
// one or more file sessions failed, or an error aborted the run partway.
type RunFailedError struct {
	Message string
}

func (e *RunFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		// Typed errors carry their own context; print them bare so the
		// console line matches what the per-command log recorded.
		var confErr *instructions.ConfigurationError
		var selErr *instructions.SelectionError
		var runErr *RunFailedError
		switch {
		case errors.As(err, &confErr), errors.As(err, &selErr), errors.As(err, &runErr):
			fmt.Fprintln(os.Stderr, err)
		default:
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(ExitFailure)
	}
	os.Exit(ExitSuccess)
}
