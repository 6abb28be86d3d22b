// Package llm provides the model clients: provider implementations, the
// model router, and the fixed retry wrapper every external call goes
// through.
package llm

import (
	"context"

	"github.com/editloop/editloop/internal/transcript"
)

//go:generate go tool mockgen -source=client.go -destination=mock_client.go -package=llm

// Client performs one blocking model call: submit the transcript, get the
// response text back.
type Client interface {
	Complete(ctx context.Context, tr *transcript.Transcript, model string) (string, error)
}
