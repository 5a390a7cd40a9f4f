package providers

import (
	"context"
	"fmt"
)

// Dispatch routes a request to the matching adapter method.
// Unconfigured adapters fail with ErrNotConfigured before any I/O.
func Dispatch(ctx context.Context, adapter Adapter, req Request) (*RawResponse, error) {
	if !adapter.Configured() {
		return nil, NotConfiguredError(adapter.ID())
	}
	if !adapter.ID().Supports(req.Operation()) {
		return nil, unsupported(adapter.ID(), req.Operation())
	}

	switch r := req.(type) {
	case *ChatRequest:
		text, ok := adapter.(TextAdapter)
		if !ok {
			return nil, unsupported(adapter.ID(), r.Operation())
		}
		return text.Chat(ctx, r)
	case *NarrateRequest:
		text, ok := adapter.(TextAdapter)
		if !ok {
			return nil, unsupported(adapter.ID(), r.Operation())
		}
		return text.Narrate(ctx, r)
	case *EnhanceRequest:
		text, ok := adapter.(TextAdapter)
		if !ok {
			return nil, unsupported(adapter.ID(), r.Operation())
		}
		return text.EnhancePrompt(ctx, r)
	case *ImageRequest:
		image, ok := adapter.(ImageAdapter)
		if !ok {
			return nil, unsupported(adapter.ID(), r.Operation())
		}
		return image.GenerateImage(ctx, r)
	default:
		return nil, fmt.Errorf("unknown request type %T", req)
	}
}

func unsupported(id ProviderID, op Operation) error {
	return NewProviderError(id, "UNSUPPORTED_OPERATION", string(op), 0, false, ErrUnsupportedOperation)
}
