package providers

// RawResponse is a backend's success payload before normalization
type RawResponse struct {
	Provider   ProviderID
	Operation  Operation
	Model      string
	StatusCode int
	Payload    Payload
}

// Payload is the closed set of native success shapes
type Payload interface {
	isPayload()
}

// TextPayload is a bare string answer, as returned by the local inference server
type TextPayload string

// ChatCompletionPayload is the choices/message shape used by hosted chat APIs.
// A nil Choices slice means the field was absent from the wire body.
type ChatCompletionPayload struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatChoice represents a completion choice
type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// ChatMessage is the assistant message inside a choice
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ImagePayload is an artifact list as returned by the image backend
type ImagePayload struct {
	Artifacts []ImageArtifact `json:"artifacts"`

	// Message is set by the backend on soft failures
	Message string `json:"message,omitempty"`
}

// ImageArtifact is one rendered image
type ImageArtifact struct {
	Base64       string `json:"base64"`
	URL          string `json:"url,omitempty"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

func (TextPayload) isPayload()            {}
func (*ChatCompletionPayload) isPayload() {}
func (*ImagePayload) isPayload()          {}
