package noa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	req, err := Extract(map[string][]string{
		"messages": {`[{"role":"user","content":"hello"}]`},
		"location": {"1 Main Street"},
		"time":     {"Monday 10:00"},
		"prompt":   {"What is this?"},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []Message{{Role: "user", Content: "hello"}}, req.Messages)
	require.NotNil(t, req.Address)
	assert.Equal(t, "1 Main Street", *req.Address)
	require.NotNil(t, req.LocalTime)
	assert.Equal(t, "Monday 10:00", *req.LocalTime)
	assert.Equal(t, "What is this?", req.Prompt)
	assert.NoError(t, Validate(req))
}

func TestExtractMessagesErrors(t *testing.T) {
	_, err := Extract(map[string][]string{"messages": {"not json"}}, false)
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Extract(map[string][]string{"messages": {`"just a string"`}}, false)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestValidate(t *testing.T) {
	blank := "   "
	tests := []struct {
		name   string
		values map[string][]string
		audio  bool
		valid  bool
	}{
		{"empty body", map[string][]string{}, false, false},
		{"prompt only", map[string][]string{"prompt": {"hi"}}, false, true},
		{"audio only", map[string][]string{}, true, true},
		{"blank prompt", map[string][]string{"prompt": {blank}}, false, false},
		{"blank location", map[string][]string{"prompt": {"hi"}, "location": {blank}}, false, false},
		{"blank time", map[string][]string{"prompt": {"hi"}, "time": {""}}, false, false},
		{"message without role", map[string][]string{"prompt": {"hi"}, "messages": {`[{"content":"x"}]`}}, false, false},
		{"empty message list", map[string][]string{"prompt": {"hi"}, "messages": {`[]`}}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Extract(tt.values, tt.audio)
			require.NoError(t, err)
			err = Validate(req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidData)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(&Response{UserPrompt: "q", Message: "a", Debug: &Debug{}}))
	assert.ErrorIs(t, Check(&Response{UserPrompt: "", Message: "a", Debug: &Debug{}}), ErrResponseFormat)
	assert.ErrorIs(t, Check(&Response{UserPrompt: "q", Message: " ", Debug: &Debug{}}), ErrResponseFormat)
	assert.ErrorIs(t, Check(&Response{UserPrompt: "q", Message: "a"}), ErrResponseFormat)
}
