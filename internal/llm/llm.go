// Package llm adapts the OpenAI-compatible completion API into the byte-chunk
// stream the ingestion engine consumes.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/stream"
)

// Client performs streaming chat completions against an OpenAI-compatible
// endpoint.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg config.LLMConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
	}
}

// StreamCompletion opens a streaming completion for the given history and
// returns it as a chunk source. Each chunk holds the UTF-8 bytes of one
// delta; the source ends with io.EOF when the model finishes.
func (c *Client) StreamCompletion(ctx context.Context, msgs []chat.Message) (stream.Source, error) {
	req := openai.ChatCompletionRequest{
		Model:  c.model,
		Stream: true,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	s, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &completionSource{stream: s}, nil
}

// completionSource adapts *openai.ChatCompletionStream to stream.Source.
type completionSource struct {
	stream *openai.ChatCompletionStream
}

func (s *completionSource) Next(ctx context.Context) ([]byte, error) {
	// Recv honors the context the stream was created with; an empty delta
	// (role-only chunk) is surfaced as a zero-length chunk and skipped by
	// the ingestion engine.
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return []byte(resp.Choices[0].Delta.Content), nil
}

func (s *completionSource) Close() error {
	return s.stream.Close()
}
