package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/memoant/internal/pipeline"
)

// Job status constants
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job source constants
const (
	SourceWatch  = "watch"
	SourceUpload = "upload"
	SourceStop   = "stop"
)

// Job represents one file handed to the pipeline
type Job struct {
	ID         string           `json:"id"`
	FilePath   string           `json:"file_path"`
	SourceType string           `json:"source"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`

	// WaitStable makes the worker wait for the file to stop growing first
	WaitStable bool `json:"-"`
}

// NewJob creates a new job with default values
func NewJob(filePath, sourceType string) *Job {
	return &Job{
		ID:         uuid.New().String(),
		FilePath:   filePath,
		SourceType: sourceType,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
		WaitStable: sourceType == SourceWatch,
	}
}
