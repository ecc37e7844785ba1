package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturereader/internal/config"
	"picturereader/internal/models"
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

var (
	pngImage  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegImage = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, genai.Text(t))
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: &genai.Content{Parts: parts}, FinishReason: genai.FinishReasonStop}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 260, CandidatesTokenCount: 12},
	}
}

type fakeChatClient struct {
	resp openai.ChatCompletionResponse
	err  error
	req  openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestDetectImageFormat(t *testing.T) {
	mime, format, err := DetectImageFormat(pngImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "png", format)

	_, format, err = DetectImageFormat(jpegImage)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, _, err = DetectImageFormat([]byte("just some text"))
	assert.ErrorIs(t, err, models.ErrUnsupportedImage)

	_, _, err = DetectImageFormat(nil)
	assert.ErrorIs(t, err, models.ErrUnsupportedImage)
}

func TestGeminiProvider_Recognize(t *testing.T) {
	costs := store.NewMemoryStore()
	gen := &fakeGenerator{resp: textResponse("A cat ", "sits on a windowsill.")}
	p := &GeminiProvider{
		generator: gen,
		modelName: "gemini-1.5-flash",
		usage:     newUsageRecorder(costs, map[string]config.PricingInfo{"gemini-1.5-flash": {InputPerToken: 0.000001, OutputPerToken: 0.000002}}),
	}

	text, err := p.Recognize(context.Background(), jpegImage, "Describe this image")
	require.NoError(t, err)
	assert.Equal(t, "A cat sits on a windowsill.", text)

	require.Len(t, gen.parts, 2)
	blob, ok := gen.parts[0].(genai.Blob)
	require.True(t, ok, "image part comes first")
	assert.Equal(t, "image/jpeg", blob.MIMEType)
	assert.Equal(t, genai.Text("Describe this image"), gen.parts[1])

	logs, err := costs.ListUsage(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "gemini", logs[0].ProviderName)
	assert.Equal(t, models.ServiceTypeRecognition, logs[0].ServiceType)
	assert.Equal(t, 260, logs[0].InputTokens)
	assert.InDelta(t, 260*0.000001+12*0.000002, logs[0].Cost, 1e-12)
}

func TestGeminiProvider_EmptyAndFailures(t *testing.T) {
	ctx := context.Background()

	noCandidates := &GeminiProvider{generator: &fakeGenerator{resp: &genai.GenerateContentResponse{}}}
	_, err := noCandidates.Recognize(ctx, pngImage, "p")
	assert.ErrorIs(t, err, recognition.ErrEmptyResult)

	noText := &GeminiProvider{generator: &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}}}
	_, err = noText.Recognize(ctx, pngImage, "p")
	assert.ErrorIs(t, err, recognition.ErrEmptyResult)

	failing := &GeminiProvider{generator: &fakeGenerator{err: errors.New("quota exceeded")}}
	_, err = failing.Recognize(ctx, pngImage, "p")
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = failing.Recognize(ctx, []byte("not an image"), "p")
	assert.ErrorIs(t, err, models.ErrUnsupportedImage)
}

func TestGeminiProvider_DisabledWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	p, err := NewGeminiProvider("", "", "none", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, store.ProviderStatusDisabled, p.Status())
	assert.Equal(t, config.DefaultGeminiModel, p.ModelName())
	assert.NoError(t, p.Close())

	_, err = p.Recognize(context.Background(), pngImage, "p")
	assert.ErrorIs(t, err, models.ErrProviderDisabled)
}

func TestSafetySettings(t *testing.T) {
	settings := SafetySettings(BlockThreshold("none"))
	require.Len(t, settings, 4)
	for _, s := range settings {
		assert.Equal(t, genai.HarmBlockNone, s.Threshold)
	}
	assert.Equal(t, genai.HarmCategoryDangerousContent, settings[3].Category)

	assert.Equal(t, genai.HarmBlockMediumAndAbove, BlockThreshold(" Medium "))
	assert.Equal(t, genai.HarmBlockNone, BlockThreshold("whatever"))
}

func TestOpenAIProvider_Recognize(t *testing.T) {
	costs := store.NewMemoryStore()
	client := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "一隻貓坐在窗台上。"}}},
		Usage:   openai.Usage{PromptTokens: 100, CompletionTokens: 20},
	}}
	p := &OpenAIProvider{client: client, model: "gpt-4o-mini", usage: newUsageRecorder(costs, nil)}

	text, err := p.Recognize(context.Background(), pngImage, "請用繁體中文描述圖片中的內容")
	require.NoError(t, err)
	assert.Equal(t, "一隻貓坐在窗台上。", text)

	require.Len(t, client.req.Messages, 1)
	parts := client.req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "請用繁體中文描述圖片中的內容", parts[0].Text)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))

	_, in, out, err := costs.GetUsageSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), in)
	assert.Equal(t, int64(20), out)
}

func TestOpenAIProvider_EmptyAndDisabled(t *testing.T) {
	p := &OpenAIProvider{client: &fakeChatClient{}, model: "gpt-4o-mini"}
	_, err := p.Recognize(context.Background(), pngImage, "p")
	assert.ErrorIs(t, err, recognition.ErrEmptyResult)

	t.Setenv("OPENAI_API_KEY", "")
	disabled, err := NewOpenAIProvider("", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, store.ProviderStatusDisabled, disabled.Status())
	_, err = disabled.Recognize(context.Background(), pngImage, "p")
	assert.ErrorIs(t, err, models.ErrProviderDisabled)
}

func TestStubProvider_IsDeterministic(t *testing.T) {
	p := NewStubProvider()
	a, err := p.Recognize(context.Background(), pngImage, "Describe this image")
	require.NoError(t, err)
	b, _ := p.Recognize(context.Background(), pngImage, "Describe this image")
	c, _ := p.Recognize(context.Background(), jpegImage, "Describe this image")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "Describe this image")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Recognize(ctx, pngImage, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUsageRecorder_LinksRequestID(t *testing.T) {
	costs := store.NewMemoryStore()
	c := recognition.NewCoordinator(capabilityWithUsage(newUsageRecorder(costs, nil)))
	defer c.Close()

	ticket := c.Submit(recognition.Request{Prompt: "p"})
	_, err := c.Wait(context.Background(), ticket)
	require.NoError(t, err)

	logs, err := costs.ListUsage(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].RequestID)
	assert.Equal(t, ticket.ID, *logs[0].RequestID)
}

// capabilityWithUsage records a fixed usage row for every call.
func capabilityWithUsage(u *usageRecorder) recognition.Capability {
	return recognition.CapabilityFunc(func(ctx context.Context, image []byte, prompt string) (string, error) {
		u.record(ctx, "test", "test-model", models.ServiceTypeRecognition, 1, 1)
		return "ok", nil
	})
}

func TestNewRecognizer(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg := &config.Config{}

	cfg.Provider.Name = "stub"
	r, err := NewRecognizer(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", r.Name())

	cfg.Provider.Name = "OpenAI"
	r, err = NewRecognizer(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", r.Name())
	assert.Equal(t, config.DefaultOpenAIModel, r.ModelName())

	cfg.Provider.Name = "gemini"
	r, err = NewRecognizer(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, store.ProviderStatusDisabled, r.Status())

	cfg.Provider.Name = "llava"
	_, err = NewRecognizer(cfg, nil)
	assert.Error(t, err)
}
