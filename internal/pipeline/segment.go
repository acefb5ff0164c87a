package pipeline

import (
	"bytes"
	"context"
	"os"

	"prodshot/internal/pkg/errors"
)

// segmentImage produces the background-free product image. The primary
// strategy is a single vision-model call with no retry: a local fallback
// exists, so burning time on remote retries is wasted latency. Any failure
// of the primary, quota included, immediately falls back to the local
// background remover applied to the same source frame. The stage only fails
// the job when both strategies are exhausted, and then reports both errors.
func (p *Pipeline) segmentImage(ctx context.Context, st *WorkflowState, paths JobPaths) error {
	const op = "pipeline.segment_image"

	if err := st.requireBestFrame(op); err != nil {
		return err
	}
	if err := st.requireProduct(op); err != nil {
		return err
	}

	log := p.log.WithJobID(st.JobID).WithStage("segment_image")

	segmented, primaryErr := p.vision.Segment(ctx, st.BestFramePath, st.ProductName)
	if primaryErr != nil {
		class := classifyError(primaryErr)
		log.Warn("model segmentation failed, trying local background removal",
			"attempt", 1,
			"error", primaryErr.Error(),
			"classification", class.String(),
		)

		segmented, primaryErr = p.segmentLocally(ctx, st.BestFramePath, primaryErr)
		if primaryErr != nil {
			return primaryErr
		}
	}

	if _, err := p.store.Put(ctx, paths.SegmentedKey(), bytes.NewReader(segmented)); err != nil {
		return errors.Wrap(err, op, "failed to write segmented image")
	}

	st.SegmentedImagePath = paths.SegmentedImagePath
	return nil
}

// segmentLocally runs the background remover over the source frame. When it
// also fails, the returned error carries both underlying causes.
func (p *Pipeline) segmentLocally(ctx context.Context, framePath string, primaryErr error) ([]byte, error) {
	const op = "pipeline.segment_image"

	source, err := os.ReadFile(framePath)
	if err != nil {
		return nil, errors.Wrap(err, op, "both segmentation strategies failed").
			WithField("primary_error", primaryErr.Error())
	}

	removed, err := p.remover.Remove(ctx, source)
	if err != nil {
		return nil, errors.Wrap(err, op, "both segmentation strategies failed").
			WithField("primary_error", primaryErr.Error())
	}

	return removed, nil
}
