package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Chat generates structured completions from an OpenAI-compatible chat API.
type Chat struct {
	client llms.Model
	logger *slog.Logger
}

func NewChat(baseURL, token, model string, logger *slog.Logger) (*Chat, error) {
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	return &Chat{
		client: client,
		logger: logger.With("component", "ai-chat"),
	}, nil
}

// CompleteJSON submits the prompt in JSON mode and returns the raw response
// body. Callers are responsible for strict decoding; nothing about the
// model's output is trusted here beyond fence stripping.
func (c *Chat) CompleteJSON(ctx context.Context, prompt string) ([]byte, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := c.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("no choices returned from model")
	}

	raw := stripFences(response.Choices[0].Content)
	c.logger.Debug("completion received", "bytes", len(raw))

	return []byte(raw), nil
}

// stripFences removes markdown code fences some models wrap around JSON
// output even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
