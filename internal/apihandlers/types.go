package apihandlers

import (
	"github.com/google/uuid"

	"picturereader/internal/prompts"
	"picturereader/internal/recognition"
)

// LanguagePrompts lists the templates of one language with its UI strings.
type LanguagePrompts struct {
	Language        prompts.Language   `json:"language"`
	Name            string             `json:"name"`
	DefaultCategory prompts.Category   `json:"default_category"`
	Templates       []prompts.Template `json:"templates"`
	Labels          map[string]string  `json:"labels"`
}

// ResolvedPrompt is the response of GET /prompts/resolve.
type ResolvedPrompt struct {
	Language prompts.Language `json:"language"`
	prompts.Template
}

// SubmissionResponse is returned by POST /recognitions.
type SubmissionResponse struct {
	RequestID  uuid.UUID             `json:"request_id"`
	Generation uint64                `json:"generation"`
	Language   prompts.Language      `json:"language"`
	Category   prompts.Category      `json:"category"`
	Prompt     string                `json:"prompt"`
	State      recognition.StateView `json:"state"`
}
