package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/web-casa/aiui/internal/model"
)

func fakeBackend(t *testing.T, choices []map[string]interface{}) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var got map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   got["model"],
			"choices": choices,
			"usage":   map[string]int{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		})
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "  What is the capital of France?  "})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	srv, got := fakeBackend(t, []map[string]interface{}{
		{"index": 0, "message": map[string]string{"role": "assistant", "content": " Paris is the capital of France. "}, "finish_reason": "stop"},
		{"index": 1, "message": map[string]string{"role": "assistant", "content": "Lyon"}, "finish_reason": "stop"},
	})

	c := NewClient("sk-test")
	res, err := c.Complete(context.Background(), Target{
		Name:       "openai/gpt-oss-20b:free",
		AccessMode: model.AccessOpenAIAPI,
		Endpoint:   srv.URL,
		MaxTokens:  4096,
	}, "What is the capital of France?")

	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", res.Text)
	assert.Equal(t, 7, res.Usage.PromptTokens)
	assert.Equal(t, "openai/gpt-oss-20b:free", (*got)["model"])
	assert.EqualValues(t, 4096, (*got)["max_tokens"])

	msgs := (*got)["messages"].([]interface{})
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "What is the capital of France?", first["content"])
}

func TestCompleteWithoutChoices(t *testing.T) {
	srv, _ := fakeBackend(t, []map[string]interface{}{})

	_, err := NewClient("").Complete(context.Background(), Target{
		Name: "local-llama", AccessMode: model.AccessLocal, Endpoint: srv.URL + "/v1/",
	}, "hello")
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestCompleteRejectsTransformer(t *testing.T) {
	_, err := NewClient("").Complete(context.Background(), Target{Name: "bert", AccessMode: model.AccessTransformer}, "hi")
	assert.True(t, errors.Is(err, ErrUnsupportedAccessMode))
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k").Complete(context.Background(), Target{Name: "m", AccessMode: model.AccessOpenAIAPI, Endpoint: srv.URL}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestTranscribe(t *testing.T) {
	srv, _ := fakeBackend(t, nil)
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o600))

	text, err := NewTranscriber(srv.URL, "k", "").Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", text)
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://openrouter.ai/api/v1":  "https://openrouter.ai/api/v1",
		"https://openrouter.ai/api/v1/": "https://openrouter.ai/api/v1",
		"http://localhost:11434":        "http://localhost:11434/v1",
		"http://localhost:8080/openai/": "http://localhost:8080/openai/v1",
		"not a url/":                    "not a url",
		"":                              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeBaseURL(in), in)
	}
}
