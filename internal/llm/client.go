// Package llm talks to OpenAI-compatible chat and speech-to-text backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/web-casa/aiui/internal/model"
)

// ErrUnsupportedAccessMode is returned for backends that cannot be reached
// over an OpenAI-compatible HTTP API.
var ErrUnsupportedAccessMode = errors.New("access mode not supported")

// ErrNoChoices is returned when the backend answers without any choice.
var ErrNoChoices = errors.New("client didn't return any content choices")

// Target identifies the model a prompt is sent to.
type Target struct {
	Name       string
	AccessMode string
	Endpoint   string
	MaxTokens  int
}

// TargetFor builds a Target from a stored AI model.
func TargetFor(m *model.AIModel) Target {
	return Target{
		Name:       m.Name,
		AccessMode: m.AccessMode,
		Endpoint:   m.AccessEndpoint,
		MaxTokens:  m.MaxTokens,
	}
}

// Usage reports token counts when the backend provides them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Result is the outcome of a single completion.
type Result struct {
	Text  string
	Usage Usage
}

// Client sends single-prompt chat completions.
type Client struct {
	apiKey string
}

// NewClient creates a client. apiKey is used for openai_api targets and
// forwarded to local endpoints when set.
func NewClient(apiKey string) *Client {
	return &Client{apiKey: apiKey}
}

func (c *Client) backend(t Target) (*openai.Client, error) {
	switch t.AccessMode {
	case model.AccessOpenAIAPI, model.AccessLocal:
	case model.AccessTransformer:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAccessMode, t.AccessMode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAccessMode, t.AccessMode)
	}

	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = model.DefaultEndpoint
	}
	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = NormalizeBaseURL(endpoint)
	return openai.NewClientWithConfig(cfg), nil
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, t Target, prompt string) (Result, error) {
	client, err := c.backend(t)
	if err != nil {
		return Result{}, err
	}

	req := openai.ChatCompletionRequest{
		Model: t.Name,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: t.MaxTokens,
	}
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrNoChoices
	}

	return Result{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// TestConnection verifies the target answers a minimal request.
func (c *Client) TestConnection(ctx context.Context, t Target) error {
	t.MaxTokens = 5
	_, err := c.Complete(ctx, t, "Hi")
	if errors.Is(err, ErrNoChoices) {
		return nil
	}
	return err
}

// NormalizeBaseURL makes sure an http(s) endpoint ends with /v1.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
