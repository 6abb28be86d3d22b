package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/editloop/editloop/internal/transcript"
)

// Router dispatches a call to the provider owning the model name. Provider
// clients are constructed lazily so a run that only touches one provider
// never needs the other providers' credentials.
type Router struct {
	mu        sync.Mutex
	openai    *OpenAIClient
	anthropic *AnthropicClient
	copilot   *CopilotClient
}

func NewRouter() *Router {
	return &Router{}
}

func (r *Router) Complete(ctx context.Context, tr *transcript.Transcript, model string) (string, error) {
	role, ok := tr.LastRole()
	if !ok {
		return "", errors.New("transcript is empty")
	}
	if role == transcript.RoleAssistant {
		return "", errors.New("transcript must not end with an assistant message")
	}

	switch {
	case openAIModels[model]:
		c, err := r.openAIClient()
		if err != nil {
			return "", err
		}
		return c.Complete(ctx, tr, model)

	case anthropicModels[model]:
		c, err := r.anthropicClient()
		if err != nil {
			return "", err
		}
		return c.Complete(ctx, tr, model)

	case strings.HasPrefix(model, copilotPrefix) && len(model) > len(copilotPrefix):
		return r.copilotClient().Complete(ctx, tr, model)

	default:
		return "", fmt.Errorf("unsupported model %q (supported: %s)", model, strings.Join(SupportedModels(), ", "))
	}
}

// Close shuts down any provider with background state (the Copilot CLI).
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.copilot != nil {
		return r.copilot.Close()
	}
	return nil
}

func (r *Router) openAIClient() (*OpenAIClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.openai == nil {
		c, err := NewOpenAIClient()
		if err != nil {
			return nil, err
		}
		r.openai = c
	}
	return r.openai, nil
}

func (r *Router) anthropicClient() (*AnthropicClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.anthropic == nil {
		c, err := NewAnthropicClient()
		if err != nil {
			return nil, err
		}
		r.anthropic = c
	}
	return r.anthropic, nil
}

func (r *Router) copilotClient() *CopilotClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.copilot == nil {
		r.copilot = NewCopilotClient()
	}
	return r.copilot
}
