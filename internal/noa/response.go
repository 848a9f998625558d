package noa

// Debug carries client-side hints. TopicChanged is always false for now.
type Debug struct {
	TopicChanged bool `json:"topic_changed"`
}

// TokenUsage is the per-model token accounting.
type TokenUsage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  *int `json:"total_tokens,omitempty"`
}

// Response is the answer returned to the client.
type Response struct {
	UserPrompt        string                `json:"user_prompt" validate:"notblank"`
	Message           string                `json:"message" validate:"notblank"`
	Debug             *Debug                `json:"debug" validate:"required"`
	Image             *string               `json:"image,omitempty"`
	TokenUsageByModel map[string]TokenUsage `json:"token_usage_by_model,omitempty"`
	CapabilitiesUsed  []string              `json:"capabilities_used,omitempty"`
	TotalTokens       *int                  `json:"total_tokens,omitempty"`
	InputTokens       *int                  `json:"input_tokens,omitempty"`
	OutputTokens      *int                  `json:"output_tokens,omitempty"`
	Timings           *string               `json:"timings,omitempty"`
}

// Capability names reported in CapabilitiesUsed
const (
	CapabilityTranscription = "transcription"
	CapabilityCompletion    = "completion"
)

// Check validates a shaped response before it is sent.
func Check(resp *Response) error {
	if err := validate.Struct(resp); err != nil {
		return ErrResponseFormat
	}
	return nil
}
