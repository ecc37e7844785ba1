package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/config"
	"picturereader/internal/models"
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

// chatClient is the part of *openai.Client used for recognition.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider recognizes images with an OpenAI vision-capable chat model.
type OpenAIProvider struct {
	client chatClient
	model  string
	usage  *usageRecorder
}

var _ Recognizer = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI recognizer. Without an API key the
// provider is returned disabled.
func NewOpenAIProvider(apiKey, modelID string, costStore store.CostTrackingStore, pricing map[string]config.PricingInfo) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if modelID == "" {
		modelID = config.DefaultOpenAIModel
	}
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI provider will be disabled.")
		return &OpenAIProvider{model: modelID}, nil
	}

	log.Infof("OpenAI provider initialized with model %s", modelID)
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  modelID,
		usage:  newUsageRecorder(costStore, pricing),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Status() store.ProviderStatus {
	if p.client == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

// Recognize sends the prompt and the image as a data URI in one user message.
func (p *OpenAIProvider) Recognize(ctx context.Context, image []byte, prompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("openai: %w (missing API key)", models.ErrProviderDisabled)
	}
	mimeType, _, err := DetectImageFormat(image)
	if err != nil {
		return "", err
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	p.usage.record(ctx, p.Name(), p.model, models.ServiceTypeRecognition, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("OpenAI returned no text: %w", recognition.ErrEmptyResult)
	}
	return resp.Choices[0].Message.Content, nil
}
