package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	ErrUnsupportedImage   = errors.New("unsupported image format")
	ErrProviderDisabled   = errors.New("recognition provider is disabled")
	ErrRecognitionPending = errors.New("recognition still in progress")
)
