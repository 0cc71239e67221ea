// Package modelclient talks to the OpenAI-compatible model backend used for
// intent refinement.
package modelclient

import (
	"context"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// OpenAIClient invokes chat completions in JSON mode so the refiner always
// receives a single JSON object to validate.
type OpenAIClient struct {
	client *openai.Client
	log    zerolog.Logger
}

// New creates a client. baseURL may point at any OpenAI-compatible endpoint.
func New(apiKey, baseURL string, log zerolog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		log:    log.With().Str("component", "model-client").Logger(),
	}
}

// StructuredCompletion sends one system+user exchange and returns the raw
// JSON response plus the token count consumed. Backend failures come back as
// transient errors so the retry and breaker layers treat them as such.
func (c *OpenAIClient) StructuredCompletion(ctx context.Context, model, systemPrompt, userText string) ([]byte, int, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return nil, 0, guarderrors.New(ctx, guarderrors.LayerInfrastructure, guarderrors.ErrorTypeToolTransient,
			"model backend call failed", err, "model-completion-001")
	}
	if len(resp.Choices) == 0 {
		return nil, resp.Usage.TotalTokens, guarderrors.New(ctx, guarderrors.LayerInfrastructure, guarderrors.ErrorTypeToolTransient,
			"model backend returned no choices", nil, "model-completion-002")
	}

	content := resp.Choices[0].Message.Content
	c.log.Debug().Str("model", model).Int("tokens", resp.Usage.TotalTokens).Msg("completion received")
	return []byte(content), resp.Usage.TotalTokens, nil
}
