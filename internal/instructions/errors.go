package instructions

import "fmt"

// ConfigurationError reports an instruction file the run cannot start from:
// unreadable, unparseable, schema-invalid, or semantically inconsistent. It
// always surfaces before any command executes.
type ConfigurationError struct {
	// Path is the instruction file that failed to load.
	Path string

	// Err describes what is wrong with it.
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid instruction file %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SelectionError reports a command-line selector that does not resolve
// against the instruction file's command list.
type SelectionError struct {
	// Token is the selector that failed, as typed by the user.
	Token string

	// Reason says why it did not resolve.
	Reason string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid command selection %q: %s", e.Token, e.Reason)
}
