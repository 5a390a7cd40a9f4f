package providers

import "fmt"

// ResultKind is the canonical shape of a successful operation
type ResultKind string

const (
	KindText           ResultKind = "text"
	KindEnhancedPrompt ResultKind = "enhanced-prompt"
	KindImageRef       ResultKind = "image-ref"
)

// Result is a provider-independent success
type Result struct {
	Operation Operation  `json:"operation"`
	Kind      ResultKind `json:"kind"`
	Provider  ProviderID `json:"provider"`
	Text      string     `json:"text,omitempty"`
	ImageRef  string     `json:"image_ref,omitempty"`
	Model     string     `json:"model,omitempty"`

	// Usage is auxiliary and may be nil
	Usage *Usage `json:"usage,omitempty"`
}

// Value returns the text or image reference, whichever the kind carries
func (r *Result) Value() string {
	if r.Kind == KindImageRef {
		return r.ImageRef
	}
	return r.Text
}

func kindFor(op Operation) ResultKind {
	switch op {
	case OpEnhancePrompt:
		return KindEnhancedPrompt
	case OpGenerateImage:
		return KindImageRef
	default:
		return KindText
	}
}

// Normalize decodes a native payload into a Result or a MalformedResponse error
func Normalize(op Operation, provider ProviderID, raw *RawResponse) (*Result, error) {
	if raw == nil || raw.Payload == nil {
		return nil, MalformedError(provider, "empty response")
	}

	res := &Result{
		Operation: op,
		Kind:      kindFor(op),
		Provider:  provider,
		Model:     raw.Model,
	}

	switch p := raw.Payload.(type) {
	case TextPayload:
		if res.Kind == KindImageRef {
			return nil, MalformedError(provider, "text payload for image operation")
		}
		res.Text = string(p)

	case *ChatCompletionPayload:
		if res.Kind == KindImageRef {
			return nil, MalformedError(provider, "chat payload for image operation")
		}
		if p == nil || p.Choices == nil {
			return nil, MalformedError(provider, "missing choices")
		}
		if len(p.Choices) == 0 {
			return nil, MalformedError(provider, "empty choices")
		}
		if p.Choices[0].Message == nil {
			return nil, MalformedError(provider, "missing message in first choice")
		}
		res.Text = p.Choices[0].Message.Content
		res.Usage = p.Usage
		if p.Model != "" {
			res.Model = p.Model
		}

	case *ImagePayload:
		if res.Kind != KindImageRef {
			return nil, MalformedError(provider, "image payload for text operation")
		}
		if p == nil || len(p.Artifacts) == 0 {
			return nil, MalformedError(provider, "missing artifacts")
		}
		art := p.Artifacts[0]
		switch {
		case art.Base64 != "":
			res.ImageRef = "data:image/png;base64," + art.Base64
		case art.URL != "":
			res.ImageRef = art.URL
		default:
			return nil, MalformedError(provider, "artifact has no image data")
		}

	default:
		return nil, MalformedError(provider, fmt.Sprintf("unknown payload %T", raw.Payload))
	}

	return res, nil
}
