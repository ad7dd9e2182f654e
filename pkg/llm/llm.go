// Package llm provides the completion-service contract.
// The wire types are go-openai's; everything upstream of this package treats
// the completion service as a black box behind the Completer interface.
package llm

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Completer is the single call contract to the completion service,
// streaming or non-streaming.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CompleteStream(ctx context.Context, req openai.ChatCompletionRequest, fn func(openai.ChatCompletionStreamResponse)) error
}

// Config for a completion client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements Completer against an OpenAI-compatible endpoint
type Client struct {
	api   *openai.Client
	model string
}

// New creates a completion client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:   openai.NewClientWithConfig(clientCfg),
		model: cfg.Model,
	}
}

// NewFromEnv creates a completion client from environment variables
func NewFromEnv() *Client {
	return New(Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:   envOr("OPENAI_MODEL", "gpt-4o"),
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Model returns the configured model identifier
func (c *Client) Model() string { return c.model }

// Complete implements Completer.Complete
func (c *Client) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	return c.api.CreateChatCompletion(ctx, req)
}

// CompleteStream implements Completer.CompleteStream.
// fn is invoked once per chunk, in stream order, until the terminal chunk.
func (c *Client) CompleteStream(ctx context.Context, req openai.ChatCompletionRequest, fn func(openai.ChatCompletionStreamResponse)) error {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = true
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fn(chunk)
	}
}

// Ensure Client implements Completer
var _ Completer = (*Client)(nil)
