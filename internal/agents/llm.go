// Package agents generates narrative analysis with a language model: the
// technical commentary, the copilot chat and the catalyst summary.
package agents

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// CompletionOptions tunes a single completion.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// LLMClient is the language model used by the narrator.
type LLMClient interface {
	// Complete sends a prompt under the default assistant system prompt.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error)
	// CompleteJSON asks for a single JSON object in the reply.
	CompleteJSON(ctx context.Context, system, prompt string, opts CompletionOptions) (string, error)
}

// DefaultSystemPrompt is used when the caller does not supply one.
const DefaultSystemPrompt = "You are a helpful assistant that provides accurate and concise information."

// OpenAIClient implements LLMClient using the OpenAI chat completions API
// or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI LLM client. An empty baseURL uses
// the OpenAI default.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends a prompt to the LLM and returns the response.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	return c.CompleteWithSystem(ctx, DefaultSystemPrompt, prompt, opts)
}

// CompleteWithSystem sends a prompt with system message to the LLM.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	return c.create(ctx, c.request(systemPrompt, userPrompt, opts))
}

// CompleteJSON sends a prompt in JSON mode.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	req := c.request(systemPrompt, userPrompt, opts)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.create(ctx, req)
}

func (c *OpenAIClient) request(systemPrompt, userPrompt string, opts CompletionOptions) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func (c *OpenAIClient) create(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name.
func (c *OpenAIClient) Model() string {
	return c.model
}
