// Package noa implements the multimodal ingest endpoint used by AR glasses
// clients: form fields and optional audio in, one AI answer out.
package noa

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	// ErrInvalidJSON is returned when the messages field is not JSON.
	ErrInvalidJSON = errors.New("Invalid JSON in messages field")
	// ErrInvalidData is returned when the submitted fields fail validation.
	ErrInvalidData = errors.New("Invalid multimodal data")
	// ErrResponseFormat is returned when the shaped answer fails validation.
	ErrResponseFormat = errors.New("Server error in response formatting")
)

// Message is one entry of the client's chat history.
type Message struct {
	Role    string `json:"role" validate:"notblank"`
	Content string `json:"content" validate:"notblank"`
}

// Request is the validated view of a multimodal submission.
// Address and LocalTime are nil when the client did not send them.
type Request struct {
	Messages  []Message `json:"messages,omitempty" validate:"dive"`
	Prompt    string    `json:"prompt"`
	Address   *string   `json:"address,omitempty" validate:"omitnil,notblank"`
	LocalTime *string   `json:"local_time,omitempty" validate:"omitnil,notblank"`
	HasAudio  bool      `json:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(Request)
		if strings.TrimSpace(req.Prompt) == "" && !req.HasAudio {
			sl.ReportError(req.Prompt, "Prompt", "prompt", "prompt_or_audio", "")
		}
	}, Request{})
	return v
}

// Extract maps the submitted form values onto a Request. The client names
// differ from ours: location is the address and time is the local time.
func Extract(values map[string][]string, hasAudio bool) (*Request, error) {
	req := &Request{HasAudio: hasAudio}

	if raw, ok := first(values, "messages"); ok {
		if !json.Valid([]byte(raw)) {
			return nil, ErrInvalidJSON
		}
		if err := json.Unmarshal([]byte(raw), &req.Messages); err != nil {
			return nil, ErrInvalidData
		}
	}
	if v, ok := first(values, "location"); ok {
		req.Address = &v
	}
	if v, ok := first(values, "time"); ok {
		req.LocalTime = &v
	}
	req.Prompt, _ = first(values, "prompt")
	return req, nil
}

// Validate checks a Request against the multimodal schema.
func Validate(req *Request) error {
	if err := validate.Struct(req); err != nil {
		return ErrInvalidData
	}
	return nil
}

func first(values map[string][]string, key string) (string, bool) {
	vs, ok := values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
