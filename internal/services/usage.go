package services

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"picturereader/internal/config"
	"picturereader/internal/models"
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

// usageRecorder turns token counts into AIUsageLog rows priced from the
// configured pricing table.
type usageRecorder struct {
	costStore store.CostTrackingStore
	pricing   map[string]config.PricingInfo
}

func newUsageRecorder(costStore store.CostTrackingStore, pricing map[string]config.PricingInfo) *usageRecorder {
	return &usageRecorder{costStore: costStore, pricing: pricing}
}

// record never fails the caller; errors are logged.
func (u *usageRecorder) record(ctx context.Context, provider, model, serviceType string, inputTokens, outputTokens int) {
	if u == nil || u.costStore == nil || inputTokens+outputTokens == 0 {
		return
	}
	// Viper lower-cases map keys, so model names are looked up lower-cased.
	priceInfo, ok := u.pricing[strings.ToLower(model)]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Recording usage with zero cost.", model)
	}
	entry := &models.AIUsageLog{
		Timestamp:    time.Now(),
		ProviderName: provider,
		ServiceType:  serviceType,
		ModelName:    model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         float64(inputTokens)*priceInfo.InputPerToken + float64(outputTokens)*priceInfo.OutputPerToken,
	}
	if ticket, ok := recognition.TicketFromContext(ctx); ok {
		id := ticket.ID
		entry.RequestID = &id
	}
	// The call context may already be cancelled once the response is in.
	if err := u.costStore.RecordUsage(context.WithoutCancel(ctx), entry); err != nil {
		log.Errorf("Failed to record AI usage log for %s: %v", serviceType, err)
		return
	}
	log.Debugf("Recorded AI usage: Provider=%s, Service=%s, Model=%s, Tokens=%d/%d, Cost=%.8f",
		entry.ProviderName, entry.ServiceType, entry.ModelName, entry.InputTokens, entry.OutputTokens, entry.Cost)
}
