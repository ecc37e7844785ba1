package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"picturereader/internal/store"
)

// StubProvider is a deterministic, no-network recognizer for local runs and
// end-to-end tests. Its output depends only on the image and the prompt.
type StubProvider struct{}

var _ Recognizer = (*StubProvider)(nil)

func NewStubProvider() *StubProvider { return &StubProvider{} }

func (p *StubProvider) Name() string                 { return "stub" }
func (p *StubProvider) ModelName() string            { return "stub-v1" }
func (p *StubProvider) Status() store.ProviderStatus { return store.ProviderStatusActive }

func (p *StubProvider) Recognize(ctx context.Context, image []byte, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(prompt), image...))
	return fmt.Sprintf("Stub recognition %s (%d bytes): %s", hex.EncodeToString(sum[:8]), len(image), truncate(prompt, 120)), nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
