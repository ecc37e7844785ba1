package services

import (
	"context"
	"fmt"

	"picturereader/internal/models"
	"picturereader/internal/store"
)

// UsageSummary is the total cost and token usage across all providers.
type UsageSummary struct {
	TotalCost         float64 `json:"total_cost"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
}

// CostService provides methods for accessing AI usage cost data.
type CostService struct {
	store store.CostTrackingStore
}

func NewCostService(store store.CostTrackingStore) *CostService {
	return &CostService{store: store}
}

// ListUsage retrieves a paginated list of AI usage logs.
func (s *CostService) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	logs, err := s.store.ListUsage(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs from store: %w", err)
	}
	return logs, nil
}

// GetSummary retrieves the total cost and token usage summary.
func (s *CostService) GetSummary(ctx context.Context) (UsageSummary, error) {
	totalCost, in, out, err := s.store.GetUsageSummary(ctx)
	if err != nil {
		return UsageSummary{}, fmt.Errorf("failed to get usage summary from store: %w", err)
	}
	return UsageSummary{TotalCost: totalCost, TotalInputTokens: in, TotalOutputTokens: out}, nil
}
