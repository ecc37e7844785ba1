package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task types used with Asynq.
const (
	// TypeRecognitionJob recognizes one image file and records the outcome.
	TypeRecognitionJob = "recognition:run"
)

// RecognitionPayload is the payload of TypeRecognitionJob.
type RecognitionPayload struct {
	ImagePath string `json:"image_path"`
	Language  string `json:"language"`
	Category  string `json:"category"`
}

func (p RecognitionPayload) Encode() ([]byte, error) {
	if strings.TrimSpace(p.ImagePath) == "" {
		return nil, fmt.Errorf("recognition payload requires an image path")
	}
	return json.Marshal(p)
}

func DecodeRecognitionPayload(data []byte) (RecognitionPayload, error) {
	var p RecognitionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal recognition payload: %w", err)
	}
	if strings.TrimSpace(p.ImagePath) == "" {
		return p, fmt.Errorf("recognition payload has no image_path")
	}
	return p, nil
}
