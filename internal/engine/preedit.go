package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/editloop/editloop/internal/cache"
	"github.com/editloop/editloop/internal/llm"
	"github.com/editloop/editloop/internal/transcript"
)

const preEditPrompt = "Format the instructions in MD. " +
	"Make each requirement an item in a list. " +
	"Rewrite the requirements to be clear. " +
	"Don't add new major requirements. "

// PreEditor rewrites a raw instruction into a cleaned, checklist-style
// instruction before the first prompt of a session is assembled. One mutex
// serializes rewrites across every concurrent file session in the process,
// so a shared instruction is rewritten once and the sessions behind the
// lock replay it from the response cache.
type PreEditor struct {
	mu     sync.Mutex
	cache  *cache.ResponseCache
	client llm.Client
}

func NewPreEditor(cache *cache.ResponseCache, client llm.Client) *PreEditor {
	return &PreEditor{cache: cache, client: client}
}

// Rewrite sends the instruction through the prompt model and returns the
// trimmed rewrite.
func (p *PreEditor) Rewrite(ctx context.Context, instruction, model string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr := transcript.New()
	tr.AppendUser(preEditPrompt + "\n\n" + instruction)

	reply, _, err := p.cache.GetOrCompute(tr, model, func() (string, error) {
		return p.client.Complete(ctx, tr, model)
	})
	if err != nil {
		return "", fmt.Errorf("pre-editing instruction: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
