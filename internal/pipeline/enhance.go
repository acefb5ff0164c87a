package pipeline

import (
	"bytes"
	"context"
	"time"

	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
)

const (
	enhancedShotCount  = 2
	enhanceAttempts    = 3
	enhanceBackoffStep = 20 * time.Second
)

// enhanceImages generates styled marketing shots from the segmented image.
// Styles are tried in order; each gets up to enhanceAttempts tries with
// quota-aware backoff, and a style that exhausts its attempts is skipped,
// logged but never propagated. The loop stops early once enhancedShotCount
// styles have produced a shot. If fewer succeed, the result is padded by
// duplicating the first successful shot, or the segmented image itself when
// none succeeded, so the stage always completes with exactly
// enhancedShotCount entries and never fails the job.
func (p *Pipeline) enhanceImages(ctx context.Context, st *WorkflowState, paths JobPaths) error {
	const op = "pipeline.enhance_images"

	if err := st.requireSegmented(op); err != nil {
		return err
	}
	if err := st.requireProduct(op); err != nil {
		return err
	}

	log := p.log.WithJobID(st.JobID).WithStage("enhance_images")

	shots := make([]string, 0, enhancedShotCount)
	for _, style := range enhancementStyles {
		if len(shots) >= enhancedShotCount {
			break
		}

		shot, err := p.generateStyledShot(ctx, log, style, st)
		if err != nil {
			log.Warn("style skipped",
				"style", style,
				"error", err.Error(),
			)
			continue
		}

		if _, err := p.store.Put(ctx, paths.EnhancementKey(style), bytes.NewReader(shot)); err != nil {
			log.Warn("style skipped, failed to write shot",
				"style", style,
				"error", err.Error(),
			)
			continue
		}

		shots = append(shots, paths.EnhancementPath(style))
	}

	// Pad with duplicates so the result always has exactly enhancedShotCount
	// entries. With zero successes the segmented image stands in.
	for len(shots) < enhancedShotCount {
		if len(shots) > 0 {
			shots = append(shots, shots[0])
		} else {
			shots = append(shots, st.SegmentedImagePath)
		}
	}

	st.EnhancedShots = shots[:enhancedShotCount]
	return nil
}

// generateStyledShot retries one style up to enhanceAttempts times. The
// inter-attempt sleep is the provider-suggested delay for quota failures,
// else enhanceBackoffStep times the attempt number.
func (p *Pipeline) generateStyledShot(ctx context.Context, log *logger.Logger, style string, st *WorkflowState) ([]byte, error) {
	prompt := buildPrompt(style, st.ProductName)

	var lastErr error
	for attempt := 1; attempt <= enhanceAttempts; attempt++ {
		shot, err := p.vision.GenerateShot(ctx, prompt, st.SegmentedImagePath)
		if err == nil {
			return shot, nil
		}

		lastErr = err
		class := classifyError(err)
		log.Warn("shot generation attempt failed",
			"style", style,
			"attempt", attempt,
			"error", err.Error(),
			"classification", class.String(),
		)

		if attempt < enhanceAttempts {
			p.sleep(backoffDelay(class, attempt, enhanceBackoffStep))
		}
	}

	return nil, errors.Wrapf(lastErr, "pipeline.enhance_images", "style %s exhausted %d attempts", style, enhanceAttempts)
}
