package pipeline

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// JobPaths is the isolated output tree for one job under the static root:
//
//	{root}/{jobId}/frames/frame_NNN.jpg
//	{root}/{jobId}/segmented.png
//	{root}/{jobId}/enhanced/enhanced_{style}.png
//
// Job IDs are unique, so trees never collide. The pipeline never deletes a
// tree; retention is handled by the worker's janitor.
type JobPaths struct {
	JobID              string
	JobDir             string
	FramesDir          string
	SegmentedImagePath string
	EnhancedDir        string
}

// EnsureJobPaths creates the directory tree for a job and returns its paths.
func EnsureJobPaths(staticRoot, jobID string) (JobPaths, error) {
	jobDir := filepath.Join(staticRoot, jobID)
	p := JobPaths{
		JobID:              jobID,
		JobDir:             jobDir,
		FramesDir:          filepath.Join(jobDir, "frames"),
		SegmentedImagePath: filepath.Join(jobDir, "segmented.png"),
		EnhancedDir:        filepath.Join(jobDir, "enhanced"),
	}

	if err := os.MkdirAll(p.FramesDir, 0o755); err != nil {
		return JobPaths{}, fmt.Errorf("creating frames dir: %w", err)
	}
	if err := os.MkdirAll(p.EnhancedDir, 0o755); err != nil {
		return JobPaths{}, fmt.Errorf("creating enhanced dir: %w", err)
	}

	return p, nil
}

// EnhancementPath returns the absolute output path for one styled shot.
func (p JobPaths) EnhancementPath(style string) string {
	return filepath.Join(p.EnhancedDir, enhancementFile(style))
}

// SegmentedKey is the store key for the segmented image.
func (p JobPaths) SegmentedKey() string {
	return path.Join(p.JobID, "segmented.png")
}

// EnhancementKey is the store key for one styled shot.
func (p JobPaths) EnhancementKey(style string) string {
	return path.Join(p.JobID, "enhanced", enhancementFile(style))
}

func enhancementFile(style string) string {
	safe := strings.ToLower(strings.ReplaceAll(style, " ", "_"))
	return fmt.Sprintf("enhanced_%s.png", safe)
}
