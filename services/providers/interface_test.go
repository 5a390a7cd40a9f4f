package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter implements both adapter interfaces and counts calls
type fakeAdapter struct {
	id         ProviderID
	configured bool
	calls      int
	resp       *RawResponse
	err        error
}

func (f *fakeAdapter) ID() ProviderID   { return f.id }
func (f *fakeAdapter) Configured() bool { return f.configured }

func (f *fakeAdapter) invoke(op Operation) (*RawResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &RawResponse{Provider: f.id, Operation: op, Payload: TextPayload(string(op))}, nil
}

func (f *fakeAdapter) Chat(ctx context.Context, req *ChatRequest) (*RawResponse, error) {
	return f.invoke(OpChat)
}

func (f *fakeAdapter) Narrate(ctx context.Context, req *NarrateRequest) (*RawResponse, error) {
	return f.invoke(OpNarrate)
}

func (f *fakeAdapter) EnhancePrompt(ctx context.Context, req *EnhanceRequest) (*RawResponse, error) {
	return f.invoke(OpEnhancePrompt)
}

func (f *fakeAdapter) GenerateImage(ctx context.Context, req *ImageRequest) (*RawResponse, error) {
	return f.invoke(OpGenerateImage)
}

func TestParseProviderID(t *testing.T) {
	tests := []struct {
		in     string
		want   ProviderID
		wantOK bool
	}{
		{"local-llm", LocalLLM, true},
		{"hosted-llm-a", HostedLLMA, true},
		{"HOSTED-LLM-B", HostedLLMB, true},
		{"hosted-image", HostedImage, true},
		{"ollama", LocalLLM, true},
		{" groq ", HostedLLMA, true},
		{"OpenAI", HostedLLMB, true},
		{"stability", HostedImage, true},
		{"anthropic", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProviderID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapabilities(t *testing.T) {
	for _, id := range []ProviderID{LocalLLM, HostedLLMA, HostedLLMB} {
		assert.True(t, id.Supports(OpChat), id)
		assert.True(t, id.Supports(OpNarrate), id)
		assert.True(t, id.Supports(OpEnhancePrompt), id)
		assert.False(t, id.Supports(OpGenerateImage), id)
	}
	assert.True(t, HostedImage.Supports(OpGenerateImage))
	assert.False(t, HostedImage.Supports(OpChat))

	caps := LocalLLM.Capabilities()
	caps[0] = OpGenerateImage
	assert.False(t, LocalLLM.Supports(OpGenerateImage), "Capabilities must return a copy")
}

func TestOperationFamily(t *testing.T) {
	assert.Equal(t, FamilyText, OpChat.Family())
	assert.Equal(t, FamilyText, OpNarrate.Family())
	assert.Equal(t, FamilyText, OpEnhancePrompt.Family())
	assert.Equal(t, FamilyImage, OpGenerateImage.Family())
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("routes each request type", func(t *testing.T) {
		text := &fakeAdapter{id: LocalLLM, configured: true}
		image := &fakeAdapter{id: HostedImage, configured: true}

		for _, req := range []Request{&ChatRequest{}, &NarrateRequest{}, &EnhanceRequest{}} {
			resp, err := Dispatch(ctx, text, req)
			require.NoError(t, err)
			assert.Equal(t, TextPayload(string(req.Operation())), resp.Payload)
		}

		resp, err := Dispatch(ctx, image, &ImageRequest{Prompt: "car"})
		require.NoError(t, err)
		assert.Equal(t, OpGenerateImage, resp.Operation)
		assert.Equal(t, 3, text.calls)
		assert.Equal(t, 1, image.calls)
	})

	t.Run("not configured fails without calling adapter", func(t *testing.T) {
		a := &fakeAdapter{id: HostedLLMA}

		_, err := Dispatch(ctx, a, &ChatRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotConfigured))
		assert.Equal(t, 0, a.calls)
	})

	t.Run("capability mismatch", func(t *testing.T) {
		a := &fakeAdapter{id: HostedImage, configured: true}

		_, err := Dispatch(ctx, a, &ChatRequest{})
		assert.True(t, errors.Is(err, ErrUnsupportedOperation))
		assert.Equal(t, 0, a.calls)
	})
}

func TestLastMessages(t *testing.T) {
	msgs := make([]Message, 12)
	for i := range msgs {
		msgs[i] = Message{Role: "user", Content: string(rune('a' + i))}
	}

	kept := LastMessages(msgs, 10)
	require.Len(t, kept, 10)
	assert.Equal(t, "c", kept[0].Content)
	assert.Len(t, LastMessages(msgs[:3], 10), 3)
}

func TestSystemWithContext(t *testing.T) {
	assert.Equal(t, "sys", SystemWithContext("sys", "  "))
	assert.Equal(t, "sys\n\nContext: sedan", SystemWithContext("sys", "sedan"))
}
