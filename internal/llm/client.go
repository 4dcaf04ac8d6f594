// Package llm wraps an Eino chat model with the two generation calls the
// workflow needs: plain completion and completion parsed as a JSON object.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/budget"
	"github.com/54b3r/libgen-go/internal/logging"
)

// runInfo names the chat model calls reported to callback handlers.
var runInfo = &callbacks.RunInfo{
	Name:      "libgen",
	Type:      "LLMClient",
	Component: components.ComponentOfChatModel,
}

// jsonInstruction is appended to the trailing user message by GenerateJSON.
const jsonInstruction = "\n\nRespond with valid JSON only."

// Config holds the settings for constructing a Client.
type Config struct {
	// ChatModel is the backend used for every completion. Required.
	ChatModel model.BaseChatModel
	// MaxPromptTokens is the estimated prompt size above which a warning is
	// logged (default: budget.DefaultMaxContextTokens).
	MaxPromptTokens int
}

// Client issues completions against a chat model. It is safe for concurrent
// use when the underlying model is.
type Client struct {
	// model is the chat backend.
	model model.BaseChatModel
	// maxPromptTokens is the prompt warning threshold.
	maxPromptTokens int
}

// New constructs a Client from cfg.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, errors.New("llm: ChatModel must not be nil")
	}
	limit := cfg.MaxPromptTokens
	if limit <= 0 {
		limit = budget.DefaultMaxContextTokens
	}
	return &Client{model: cfg.ChatModel, maxPromptTokens: limit}, nil
}

// Generate sends msgs to the model and returns the completion text.
func (c *Client) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	log := logging.FromContext(ctx)

	est := budget.EstimateMessages(msgs)
	if est > c.maxPromptTokens {
		log.Warn("llm: prompt exceeds token budget",
			slog.Int("estimated_tokens", est),
			slog.Int("max_tokens", c.maxPromptTokens),
		)
	}
	log.Info("llm: generating completion", slog.Int("messages", len(msgs)), slog.Int("estimated_tokens", est))

	// Direct model calls carry no callback manager; global handlers such as
	// Langfuse only fire once one is installed.
	ctx = callbacks.InitCallbacks(ctx, runInfo)

	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	if resp == nil {
		return "", errors.New("llm: generate: model returned no message")
	}

	log.Info("llm: generated completion", slog.Int("chars", len(resp.Content)))
	return resp.Content, nil
}

// GenerateJSON asks the model for a JSON object and parses the first object
// found in the completion. A response without a parseable object yields an
// empty map and a nil error; only a failed model call is returned as an error.
// msgs is not modified.
func (c *Client) GenerateJSON(ctx context.Context, msgs []*schema.Message) (map[string]any, error) {
	out, err := c.Generate(ctx, withJSONInstruction(msgs))
	if err != nil {
		return nil, err
	}

	obj, err := ExtractJSON(out)
	if err != nil {
		logging.FromContext(ctx).Warn("llm: no JSON object in completion", slog.Any("error", err))
		return map[string]any{}, nil
	}
	return obj, nil
}

// withJSONInstruction returns a copy of msgs whose trailing user message asks
// for JSON. Messages are copied so callers' values are never mutated.
func withJSONInstruction(msgs []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(msgs))
	copy(out, msgs)
	if n := len(out); n > 0 && out[n-1] != nil && out[n-1].Role == schema.User {
		last := *out[n-1]
		last.Content += jsonInstruction
		out[n-1] = &last
	}
	return out
}
