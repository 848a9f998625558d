package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Transcriber converts an audio file to text with a Whisper-style endpoint.
type Transcriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber creates a transcriber. An empty model means whisper-1.
func NewTranscriber(baseURL, apiKey, model string) *Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = NormalizeBaseURL(baseURL)
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: openai.NewClientWithConfig(cfg), model: model}
}

// Transcribe returns the trimmed transcript of the audio file at path.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
