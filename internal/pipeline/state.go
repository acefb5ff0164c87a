package pipeline

import (
	"prodshot/internal/pkg/errors"
)

// Status is the lifecycle state of a job run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// WorkflowState is the record threaded through the stages. Fields are
// append-only: once a stage sets one, no later stage mutates it. Each stage
// validates the fields it depends on before doing any work.
type WorkflowState struct {
	JobID    string
	VideoURL string

	Status Status
	// Stage is the stage currently running, or the one that failed.
	Stage string

	// SampledFrames are chronological frame paths, set by FrameExtraction.
	SampledFrames []string
	// TopFrames is an ordered subset of SampledFrames, set by TopFrameSelection.
	TopFrames []string
	// ProductName is set by ProductIdentification.
	ProductName string
	// BestFramePath equals one element of TopFrames, set by BestFrameSelection.
	BestFramePath string
	// SegmentedImagePath points at the background-free image, set by Segmentation.
	SegmentedImagePath string
	// EnhancedShots has exactly 2 entries after Enhancement completes.
	EnhancedShots []string
}

// requireFrames validates that FrameExtraction has run.
func (s *WorkflowState) requireFrames(op string) error {
	if len(s.SampledFrames) == 0 {
		return errors.New(errors.CodeFailedPrecond, "no sampled frames in state").WithField("op", op)
	}
	return nil
}

// requireTopFrames validates that TopFrameSelection has run.
func (s *WorkflowState) requireTopFrames(op string) error {
	if len(s.TopFrames) == 0 {
		return errors.New(errors.CodeFailedPrecond, "no top frames in state").WithField("op", op)
	}
	return nil
}

// requireProduct validates that ProductIdentification has run.
func (s *WorkflowState) requireProduct(op string) error {
	if s.ProductName == "" {
		return errors.New(errors.CodeFailedPrecond, "no product name in state").WithField("op", op)
	}
	return nil
}

// requireBestFrame validates that BestFrameSelection has run.
func (s *WorkflowState) requireBestFrame(op string) error {
	if s.BestFramePath == "" {
		return errors.New(errors.CodeFailedPrecond, "no best frame in state").WithField("op", op)
	}
	return nil
}

// requireSegmented validates that Segmentation has run.
func (s *WorkflowState) requireSegmented(op string) error {
	if s.SegmentedImagePath == "" {
		return errors.New(errors.CodeFailedPrecond, "no segmented image in state").WithField("op", op)
	}
	return nil
}
