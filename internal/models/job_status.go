package models

/*
Job, task and history status constants for use throughout the codebase.
Centralizing these avoids magic strings.
*/

// Job status constants
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Recognition history states
const (
	RecognitionStateSuccess = "success"
	RecognitionStateError   = "error"
)

// Usage service types
const (
	ServiceTypeRecognition = "recognition"
	ServiceTypeSpeech      = "speech"
)
