package services

import (
	"picturereader/internal/recognition"
	"picturereader/internal/store"
)

// Recognizer is a recognition provider: it turns an image and a prompt into
// text. Every Recognizer is a recognition.Capability.
type Recognizer interface {
	recognition.Capability
	Name() string
	ModelName() string
	Status() store.ProviderStatus
}
