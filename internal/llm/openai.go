package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/editloop/editloop/internal/transcript"
)

// defaultSystemPrompt is inserted when a transcript reaches an OpenAI model
// that supports the system role without carrying one.
const defaultSystemPrompt = "You are expert software engineer from MIT."

// OpenAIClient calls the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient() (*OpenAIClient, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	return &OpenAIClient{client: openai.NewClient(key)}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, tr *transcript.Transcript, model string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: chatMessages(tr, model),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// chatMessages converts a transcript into the request message slice,
// prepending the default system prompt for models that accept one.
func chatMessages(tr *transcript.Transcript, model string) []openai.ChatCompletionMessage {
	msgs := tr.Messages()
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)

	if !noSystemRole[model] && (len(msgs) == 0 || msgs[0].Role != transcript.RoleSystem) {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: defaultSystemPrompt,
		})
	}
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
