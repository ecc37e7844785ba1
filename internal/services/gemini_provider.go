package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"picturereader/internal/config"
	"picturereader/internal/models"
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

// contentGenerator is the part of *genai.GenerativeModel used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider recognizes images with a Gemini multimodal model.
type GeminiProvider struct {
	client    *genai.Client
	generator contentGenerator
	modelName string
	usage     *usageRecorder
}

var _ Recognizer = (*GeminiProvider)(nil)

// harmCategories are the categories the safety threshold applies to.
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// BlockThreshold maps a config threshold name to the SDK value. Unknown names
// map to HarmBlockNone.
func BlockThreshold(name string) genai.HarmBlockThreshold {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return genai.HarmBlockLowAndAbove
	case "medium":
		return genai.HarmBlockMediumAndAbove
	case "high":
		return genai.HarmBlockOnlyHigh
	case "unspecified":
		return genai.HarmBlockUnspecified
	default:
		return genai.HarmBlockNone
	}
}

// SafetySettings applies threshold to every harm category.
func SafetySettings(threshold genai.HarmBlockThreshold) []*genai.SafetySetting {
	settings := make([]*genai.SafetySetting, 0, len(harmCategories))
	for _, category := range harmCategories {
		settings = append(settings, &genai.SafetySetting{Category: category, Threshold: threshold})
	}
	return settings
}

// NewGeminiProvider creates a Gemini recognizer. Without an API key the
// provider is returned disabled.
func NewGeminiProvider(apiKey, modelName, blockThreshold string, costStore store.CostTrackingStore, pricing map[string]config.PricingInfo) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if modelName == "" {
		modelName = config.DefaultGeminiModel
	}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return &GeminiProvider{modelName: modelName}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SafetySettings = SafetySettings(BlockThreshold(blockThreshold))

	log.Infof("Gemini provider initialized with model %s (block threshold %s)", modelName, BlockThreshold(blockThreshold))

	return &GeminiProvider{
		client:    client,
		generator: model,
		modelName: modelName,
		usage:     newUsageRecorder(costStore, pricing),
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) ModelName() string { return p.modelName }

func (p *GeminiProvider) Status() store.ProviderStatus {
	if p.generator == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

// Recognize sends the image followed by the prompt and concatenates the text
// parts of the first candidate.
func (p *GeminiProvider) Recognize(ctx context.Context, image []byte, prompt string) (string, error) {
	if p.generator == nil {
		return "", fmt.Errorf("gemini: %w (missing API key)", models.ErrProviderDisabled)
	}
	_, format, err := DetectImageFormat(image)
	if err != nil {
		return "", err
	}

	resp, err := p.generator.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if resp.UsageMetadata != nil {
		p.usage.record(ctx, p.Name(), p.modelName, models.ServiceTypeRecognition,
			int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil {
			return "", fmt.Errorf("gemini blocked the prompt (%s): %w", resp.PromptFeedback.BlockReason, recognition.ErrEmptyResult)
		}
		return "", fmt.Errorf("gemini returned no candidates: %w", recognition.ErrEmptyResult)
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text (finish reason %s): %w", candidate.FinishReason, recognition.ErrEmptyResult)
	}
	return b.String(), nil
}

// Close releases the Gemini client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
