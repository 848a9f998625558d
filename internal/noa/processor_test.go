package noa

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/service"
	"go.uber.org/zap"
)

type fakeTranscriber struct {
	text string
	err  error
	path string
	data string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.path = path
	b, _ := os.ReadFile(path)
	f.data = string(b)
	return f.text, f.err
}

type fakeModels struct {
	m *model.AIModel
}

func (f *fakeModels) GetByName(ctx context.Context, name string) (*model.AIModel, error) {
	if f.m == nil || f.m.Name != name {
		return nil, service.ErrNotFound
	}
	return f.m, nil
}

type fakeAnswers struct {
	completion service.Completion
	err        error
	prompts    []string
	stored     []*model.ConversationThread
}

func (f *fakeAnswers) Complete(ctx context.Context, m *model.AIModel, prompt string) (service.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	return f.completion, f.err
}

func (f *fakeAnswers) Append(ctx context.Context, thread *model.ConversationThread, prompt string, c service.Completion, userID uint) (*model.ConversationItem, error) {
	thread.ID = uuid.New()
	f.stored = append(f.stored, thread)
	return &model.ConversationItem{ConversationThreadID: thread.ID, Prompt: prompt, Response: c.Text}, nil
}

const testModel = "openai/gpt-oss-20b:free"

func newTestProcessor(tr Transcriber, answers *fakeAnswers, persist bool) *Processor {
	models := &fakeModels{m: &model.AIModel{ID: uuid.New(), Name: testModel}}
	return NewProcessor(tr, models, answers, Options{Model: testModel, Persist: persist}, zap.NewNop())
}

func TestProcessAudio(t *testing.T) {
	tr := &fakeTranscriber{text: "  What is the capital of France? "}
	answers := &fakeAnswers{completion: service.Completion{Text: "Paris.", Tokens: 7}}
	p := newTestProcessor(tr, answers, false)

	resp, err := p.Process(context.Background(), Input{
		Request:   &Request{HasAudio: true},
		Audio:     strings.NewReader("RIFF...."),
		AudioName: "clip.wav",
	})
	require.NoError(t, err)

	assert.Equal(t, "What is the capital of France?", resp.UserPrompt)
	assert.Equal(t, "Paris.", resp.Message)
	assert.False(t, resp.Debug.TopicChanged)
	assert.Equal(t, []string{CapabilityTranscription, CapabilityCompletion}, resp.CapabilitiesUsed)
	require.NotNil(t, resp.TotalTokens)
	assert.Equal(t, 7, *resp.TotalTokens)

	assert.Equal(t, "RIFF....", tr.data)
	assert.True(t, strings.HasSuffix(tr.path, ".wav"))
	_, statErr := os.Stat(tr.path)
	assert.True(t, os.IsNotExist(statErr), "temp audio file should be removed")
	assert.Empty(t, answers.stored)
}

func TestProcessCombinesPromptAndAudio(t *testing.T) {
	tr := &fakeTranscriber{text: "in French"}
	answers := &fakeAnswers{completion: service.Completion{
		Text:  "Bonjour",
		Usage: llm.Usage{PromptTokens: 5, CompletionTokens: 2},
	}}
	p := newTestProcessor(tr, answers, false)

	resp, err := p.Process(context.Background(), Input{
		Request: &Request{Prompt: "Say hello", HasAudio: true},
		Audio:   strings.NewReader("x"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Say hello in French"}, answers.prompts)
	require.Contains(t, resp.TokenUsageByModel, testModel)
	assert.Equal(t, 5, resp.TokenUsageByModel[testModel].InputTokens)
	assert.Equal(t, 7, *resp.TotalTokens)
}

func TestProcessEmptyPromptSkipsModel(t *testing.T) {
	tr := &fakeTranscriber{text: ""}
	answers := &fakeAnswers{}
	p := newTestProcessor(tr, answers, true)

	_, err := p.Process(context.Background(), Input{
		Request: &Request{HasAudio: true},
		Audio:   strings.NewReader("silence"),
	})
	assert.ErrorIs(t, err, ErrResponseFormat)
	assert.Empty(t, answers.prompts)
	assert.Empty(t, answers.stored)
}

func TestProcessPersists(t *testing.T) {
	answers := &fakeAnswers{completion: service.Completion{Text: "Paris.", Tokens: 3}}
	p := newTestProcessor(nil, answers, true)

	_, err := p.Process(context.Background(), Input{Request: &Request{Prompt: "Capital of France?"}})
	require.NoError(t, err)

	require.Len(t, answers.stored, 1)
	thread := answers.stored[0]
	assert.Equal(t, model.ChatNOA, thread.ChatType)
	assert.True(t, strings.HasPrefix(thread.Name, "NOA Chat "))
	assert.Equal(t, "Capital of France?", thread.Summary)
	assert.Nil(t, thread.CreatedByID)
}

func TestProcessErrors(t *testing.T) {
	t.Run("unknown model", func(t *testing.T) {
		p := NewProcessor(nil, &fakeModels{}, &fakeAnswers{}, Options{Model: testModel}, zap.NewNop())
		_, err := p.Process(context.Background(), Input{Request: &Request{Prompt: "hi"}})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("no transcriber", func(t *testing.T) {
		p := newTestProcessor(nil, &fakeAnswers{}, false)
		_, err := p.Process(context.Background(), Input{Request: &Request{HasAudio: true}, Audio: strings.NewReader("x")})
		assert.ErrorIs(t, err, ErrNoTranscriber)
	})

	t.Run("transcription failure", func(t *testing.T) {
		p := newTestProcessor(&fakeTranscriber{err: errors.New("boom")}, &fakeAnswers{}, false)
		_, err := p.Process(context.Background(), Input{Request: &Request{HasAudio: true}, Audio: strings.NewReader("x")})
		var upstream *service.UpstreamError
		assert.ErrorAs(t, err, &upstream)
	})

	t.Run("completion failure", func(t *testing.T) {
		answers := &fakeAnswers{err: &service.UpstreamError{Op: "completion", Err: errors.New("down")}}
		p := newTestProcessor(nil, answers, true)
		_, err := p.Process(context.Background(), Input{Request: &Request{Prompt: "hi"}})
		assert.Error(t, err)
		assert.Empty(t, answers.stored)
	})
}
