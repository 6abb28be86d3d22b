package llm

import "fmt"

// ExternalCallError surfaces a model call that failed after the full retry
// budget.
type ExternalCallError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("model call to %q failed after %d attempts: %v", e.Model, e.Attempts, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}
