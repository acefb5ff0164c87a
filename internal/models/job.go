package models

import "time"

// Job statuses as persisted in the jobs table.
const (
	JobStatusQueued  = "QUEUED"
	JobStatusRunning = "RUNNING"
	JobStatusDone    = "DONE"
	JobStatusFailed  = "FAILED"
)

// Job is one video-to-product-shots request.
type Job struct {
	ID       string `json:"id"`
	VideoURL string `json:"video_url"`
	Status   string `json:"status"`

	// Result holds the output URLs once the job is done.
	Result *JobResult `json:"result,omitempty"`
	// ErrorText is set when the job failed.
	ErrorText string `json:"error_text,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobResult is the completed output of a pipeline run, with paths already
// mapped to servable static URLs.
type JobResult struct {
	ProductName       string   `json:"product_name"`
	KeyFrameURL       string   `json:"key_frame_url"`
	SegmentedImageURL string   `json:"segmented_image_url"`
	EnhancedShots     []string `json:"enhanced_shots"`
}
