package noa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/web-casa/aiui/internal/metrics"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/service"
	"go.uber.org/zap"
)

const (
	noResponse     = service.NoResponse
	summaryLength  = 200
	threadNameTime = "2006-01-02 15:04:05"
)

// ErrNoTranscriber is returned for audio submissions when speech-to-text is not configured.
var ErrNoTranscriber = errors.New("audio transcription is not configured")

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// ModelResolver finds an AI model by name.
type ModelResolver interface {
	GetByName(ctx context.Context, name string) (*model.AIModel, error)
}

// Answerer asks a model for an answer and optionally stores the exchange.
type Answerer interface {
	Complete(ctx context.Context, m *model.AIModel, prompt string) (service.Completion, error)
	Append(ctx context.Context, thread *model.ConversationThread, prompt string, c service.Completion, userID uint) (*model.ConversationItem, error)
}

// Options configures a Processor.
type Options struct {
	// Model is the name of the AI model answering every request.
	Model string
	// Persist stores each answered exchange as a new noa thread.
	Persist bool
	// TranscribeTimeout bounds the speech-to-text call; zero disables it.
	TranscribeTimeout time.Duration
}

// Input is one submission: the validated fields plus optional uploads.
type Input struct {
	Request   *Request
	Audio     io.Reader
	AudioName string
	ImageName string
}

// Processor runs the multimodal pipeline.
type Processor struct {
	transcriber Transcriber
	models      ModelResolver
	answers     Answerer
	opts        Options
	log         *zap.Logger
}

// NewProcessor creates a Processor. transcriber may be nil, in which case
// audio submissions fail.
func NewProcessor(transcriber Transcriber, models ModelResolver, answers Answerer, opts Options, log *zap.Logger) *Processor {
	return &Processor{
		transcriber: transcriber,
		models:      models,
		answers:     answers,
		opts:        opts,
		log:         log.With(zap.String("module", "noa")),
	}
}

// Process answers one submission. Errors other than ErrResponseFormat are
// reported to the client as exceptions.
func (p *Processor) Process(ctx context.Context, in Input) (*Response, error) {
	var (
		capabilities []string
		timings      []string
	)

	audioText := ""
	if in.Audio != nil {
		start := time.Now()
		text, err := p.transcribe(ctx, in.Audio)
		if err != nil {
			return nil, err
		}
		p.log.Info("received audio file", zap.String("name", in.AudioName))
		audioText = text
		capabilities = append(capabilities, CapabilityTranscription)
		timings = append(timings, fmt.Sprintf("transcription=%dms", time.Since(start).Milliseconds()))
	}

	if in.ImageName != "" {
		p.log.Info("received image file", zap.String("name", in.ImageName))
	} else {
		p.log.Debug("no image file received")
	}

	prompt := strings.TrimSpace(in.Request.Prompt + " " + audioText)

	m, err := p.models.GetByName(ctx, p.opts.Model)
	if err != nil {
		return nil, err
	}

	resp := &Response{UserPrompt: prompt, Message: noResponse, Debug: &Debug{}}
	if prompt != "" {
		start := time.Now()
		c, err := p.answers.Complete(ctx, m, prompt)
		if err != nil {
			return nil, err
		}
		resp.Message = c.Text
		capabilities = append(capabilities, CapabilityCompletion)
		timings = append(timings, fmt.Sprintf("completion=%dms", time.Since(start).Milliseconds()))
		fillUsage(resp, m.Name, c)

		if p.opts.Persist {
			if err := p.persist(ctx, m, prompt, c); err != nil {
				return nil, err
			}
		}
	}

	resp.CapabilitiesUsed = capabilities
	if len(timings) > 0 {
		t := strings.Join(timings, " ")
		resp.Timings = &t
	}

	if err := Check(resp); err != nil {
		p.log.Warn("invalid response shape", zap.String("user_prompt", resp.UserPrompt))
		return nil, err
	}
	return resp, nil
}

func (p *Processor) transcribe(ctx context.Context, audio io.Reader) (string, error) {
	if p.transcriber == nil {
		return "", ErrNoTranscriber
	}

	f, err := os.CreateTemp("", "noa-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to buffer audio: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, audio); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to buffer audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to buffer audio: %w", err)
	}

	if p.opts.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TranscribeTimeout)
		defer cancel()
	}
	text, err := p.transcriber.Transcribe(ctx, f.Name())
	if err != nil {
		metrics.ObserveTranscription(metrics.OutcomeError)
		return "", &service.UpstreamError{Op: "transcription", Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.ObserveTranscription(metrics.OutcomeEmpty)
	} else {
		metrics.ObserveTranscription(metrics.OutcomeOK)
	}
	return text, nil
}

func (p *Processor) persist(ctx context.Context, m *model.AIModel, prompt string, c service.Completion) error {
	summary := prompt
	if r := []rune(summary); len(r) > summaryLength {
		summary = string(r[:summaryLength])
	}
	thread := &model.ConversationThread{
		Name:      "NOA Chat " + time.Now().Format(threadNameTime),
		Summary:   summary,
		AIModelID: &m.ID,
		ChatType:  model.ChatNOA,
	}
	if _, err := p.answers.Append(ctx, thread, prompt, c, 0); err != nil {
		return err
	}
	p.log.Info("stored noa exchange", zap.String("thread_id", thread.ID.String()))
	return nil
}

func fillUsage(resp *Response, modelName string, c service.Completion) {
	in, out := c.Usage.PromptTokens, c.Usage.CompletionTokens
	total := in + out
	if total == 0 {
		total = c.Tokens
		resp.TotalTokens = &total
		return
	}
	resp.InputTokens = &in
	resp.OutputTokens = &out
	resp.TotalTokens = &total
	resp.TokenUsageByModel = map[string]TokenUsage{
		modelName: {InputTokens: in, OutputTokens: out, TotalTokens: &total},
	}
}
