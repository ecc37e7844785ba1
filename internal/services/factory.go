package services

import (
	"fmt"
	"strings"

	"picturereader/internal/config"
	"picturereader/internal/store"
)

// NewRecognizer builds the provider named by cfg.Provider.Name.
func NewRecognizer(cfg *config.Config, costStore store.CostTrackingStore) (Recognizer, error) {
	name := strings.ToLower(cfg.Provider.Name)
	switch name {
	case "", "gemini":
		p, err := NewGeminiProvider(cfg.Provider.GeminiAPIKey, cfg.Provider.GeminiModel, cfg.Provider.BlockThreshold, costStore, cfg.PricingFor("gemini"))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		p, err := NewOpenAIProvider(cfg.Provider.OpenAIAPIKey, cfg.Provider.OpenAIModel, costStore, cfg.PricingFor("openai"))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "stub":
		return NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown recognition provider %q", cfg.Provider.Name)
	}
}
