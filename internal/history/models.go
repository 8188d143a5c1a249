// Package history persists hashtag run records and drives queued runs in
// the background.
package history

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one queued or finished hashtag processing run.
type Run struct {
	ID        string    `json:"id"`
	Hashtag   string    `json:"hashtag"`
	Requested int       `json:"requested"`
	Status    string    `json:"status"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunItem is the per-video record of one run.
type RunItem struct {
	RunID      string    `json:"run_id"`
	VideoID    string    `json:"video_id"`
	SourceURL  string    `json:"source_url"`
	Status     string    `json:"status"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewRunID() string {
	return uuid.NewString()
}
