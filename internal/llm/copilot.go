package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/editloop/editloop/internal/transcript"
)

// CopilotClient runs model calls through the Copilot CLI. Each call gets a
// throwaway session in a scratch working directory with every tool
// permission denied, so the CLI acts as a plain text transport.
type CopilotClient struct {
	client *copilot.Client

	// NOTE: the copilot client has an 'autostart' feature, but it runs into
	// issues when it tries to autostart from separate goroutines, so the
	// first caller starts it explicitly.
	startOnce sync.Once
	startErr  error
	started   bool

	scratchMu   sync.Mutex
	scratchDirs []string
}

func NewCopilotClient() *CopilotClient {
	return &CopilotClient{
		client: copilot.NewClient(&copilot.ClientOptions{
			LogLevel:  "error",
			AutoStart: copilot.Bool(false),
		}),
	}
}

func (c *CopilotClient) Complete(ctx context.Context, tr *transcript.Transcript, model string) (string, error) {
	c.startOnce.Do(func() {
		c.startErr = c.client.Start(ctx)
		c.started = c.startErr == nil
	})
	if c.startErr != nil {
		return "", fmt.Errorf("copilot CLI failed to start: %w", c.startErr)
	}

	scratch, err := os.MkdirTemp("", "editloop-*")
	if err != nil {
		return "", fmt.Errorf("create scratch workspace: %w", err)
	}
	c.scratchMu.Lock()
	c.scratchDirs = append(c.scratchDirs, scratch)
	c.scratchMu.Unlock()

	session, err := c.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               strings.TrimPrefix(model, copilotPrefix),
		OnPermissionRequest: denyAllTools,
		WorkingDirectory:    scratch,
	})
	if err != nil {
		return "", fmt.Errorf("create copilot session: %w", err)
	}

	var parts []string
	unsubscribe := session.On(func(event copilot.SessionEvent) {
		switch event.Type {
		case copilot.AssistantMessage, copilot.AssistantMessageDelta:
			if event.Data.Content != nil {
				parts = append(parts, *event.Data.Content)
			}
		}
	})
	defer unsubscribe()

	if _, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: tr.Text()}); err != nil {
		return "", fmt.Errorf("copilot session: %w", err)
	}

	return strings.Join(parts, ""), nil
}

// Close stops the CLI and removes the scratch workspaces.
func (c *CopilotClient) Close() error {
	var stopErr error
	if c.started {
		stopErr = c.client.Stop()
	}

	c.scratchMu.Lock()
	dirs := c.scratchDirs
	c.scratchDirs = nil
	c.scratchMu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove scratch workspace", "path", dir, "error", err)
		}
	}
	return stopErr
}

func denyAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// The transport is text-only; tool use is never granted.
	return copilot.PermissionRequestResult{Kind: "denied"}, nil
}
