// Package genai provides an optional OpenAI-backed general-answer
// client used for NON_MEDICAL_SAFE chat when no AI engine URL is
// configured. It never participates in clinical decisions; its output
// is plain reply text that still passes through the safety filter.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
var DefaultModel = openai.ChatModelGPT4oMini

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey is the OpenAI API key. Empty disables the client.
	APIKey string
	// Model overrides the chat model.
	Model openai.ChatModel
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// Client wraps the OpenAI chat completion API for general answers.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient creates a GenAI client, or nil when no API key is
// configured so callers fall back to canned replies.
func NewClient(opts ...Option) *Client {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.APIKey) == "" {
		slog.Info("genai.NewClient: no API key configured, general answers disabled")
		return nil
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	slog.Info("genai.NewClient: client created", "model", o.Model)
	return &Client{
		client: openai.NewClient(option.WithAPIKey(o.APIKey)),
		model:  o.Model,
	}
}

// languageNames spells out reply languages for the system prompt.
var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"mr": "Marathi",
	"ta": "Tamil",
	"te": "Telugu",
}

// GeneralAnswer produces a short, safe answer to a non-medical message.
func (c *Client) GeneralAnswer(ctx context.Context, text, language string) (string, error) {
	name, ok := languageNames[language]
	if !ok {
		name = "English"
	}
	system := fmt.Sprintf(
		"You are a rural health assistant in India. Answer the user's non-medical question briefly and politely in %s. "+
			"Never name a diagnosis, never suggest medicines or doses. Two sentences at most.", name)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
		Model: c.model,
	})
	if err != nil {
		slog.Warn("genai.GeneralAnswer: completion failed", "error", err)
		return "", fmt.Errorf("genai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("genai: empty completion")
	}
	slog.Debug("genai.GeneralAnswer: completion received", "language", language)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
