package domain

import "time"

// TransformMode enumerates supported transformation modes.
type TransformMode string

const (
	TransformModeClothingOnly TransformMode = "clothing_only"
	TransformModeFull         TransformMode = "full"
	TransformModeFullVintage  TransformMode = "full_vintage"
)

// PhotoStatus enumerates the lifecycle states of a transformation.
type PhotoStatus string

const (
	PhotoStatusProcessing PhotoStatus = "processing"
	PhotoStatusCompleted  PhotoStatus = "completed"
	PhotoStatusFailed     PhotoStatus = "failed"
)

// Terminal reports whether the status is final. Terminal photos are immutable.
func (s PhotoStatus) Terminal() bool {
	return s == PhotoStatusCompleted || s == PhotoStatusFailed
}

// TimePhoto tracks one transformation request from submission to its terminal
// outcome. ExternalTaskID is assigned by the remote provider once it accepts
// the submission and is the correlation key for provider callbacks.
type TimePhoto struct {
	ID             string
	OwnerID        string
	OriginalURL    string
	ResultURL      string
	TargetYear     int
	Mode           TransformMode
	StyleApplied   string
	PromptUsed     string
	Provider       string
	ExternalTaskID string
	Status         PhotoStatus
	ErrorMessage   string
	Cost           int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
