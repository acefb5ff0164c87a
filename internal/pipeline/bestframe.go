package pipeline

import (
	"context"
	"time"
)

const (
	bestFrameAttempts    = 3
	bestFrameBackoffStep = 5 * time.Second
)

// selectBestFrame picks the clearest top frame. Up to bestFrameAttempts
// tries; between attempts the sleep is the provider-suggested delay for
// quota failures, else bestFrameBackoffStep times the attempt number.
//
// This stage sits mid-pipeline, so failing the job here would waste all the
// upstream work. If every attempt fails, or the model returns an index
// outside the top-frame range, the stage falls back to the first top frame
// instead of aborting. An out-of-range index is handled like any other
// recoverable failure: it burns the attempt and retries.
func (p *Pipeline) selectBestFrame(ctx context.Context, st *WorkflowState, _ JobPaths) error {
	const op = "pipeline.select_best_frame"

	if err := st.requireTopFrames(op); err != nil {
		return err
	}
	if err := st.requireProduct(op); err != nil {
		return err
	}

	log := p.log.WithJobID(st.JobID).WithStage("select_best_frame")

	for attempt := 1; attempt <= bestFrameAttempts; attempt++ {
		idx, err := p.vision.SelectBestFrame(ctx, st.TopFrames, st.ProductName)

		var class errorClass
		if err == nil {
			if idx >= 0 && idx < len(st.TopFrames) {
				st.BestFramePath = st.TopFrames[idx]
				return nil
			}
			log.Warn("model returned out-of-range frame index",
				"attempt", attempt,
				"index", idx,
				"frames", len(st.TopFrames),
				"classification", "out_of_range",
			)
		} else {
			class = classifyError(err)
			log.Warn("best frame selection attempt failed",
				"attempt", attempt,
				"error", err.Error(),
				"classification", class.String(),
			)
		}

		if attempt < bestFrameAttempts {
			p.sleep(backoffDelay(class, attempt, bestFrameBackoffStep))
		}
	}

	log.Warn("best frame selection exhausted, falling back to first top frame")
	st.BestFramePath = st.TopFrames[0]
	return nil
}
