package pipeline

import (
	"context"

	"prodshot/internal/pkg/errors"
)

// extractFrames downloads the video and samples frames into the job's frames
// directory. Duration-exceeded and zero-frames conditions are deterministic
// properties of the input, not transient faults, so they abort the job
// without retry and before any vision-model call is made. The extractor
// codes those itself; anything else it reports (download failures, tool
// errors) keeps its own classification and is not re-coded as an input
// fault here.
func (p *Pipeline) extractFrames(ctx context.Context, st *WorkflowState, paths JobPaths) error {
	frames, err := p.frames.Sample(ctx, st.VideoURL, SampleOptions{
		TargetDir:          paths.FramesDir,
		IntervalSeconds:    p.cfg.FrameSampleRate,
		MaxDurationSeconds: p.cfg.MaxVideoDuration,
		MaxFrames:          p.cfg.MaxFrames,
	})
	if err != nil {
		return errors.Wrap(err, "pipeline.extract_frames", "frame extraction failed")
	}
	if len(frames) == 0 {
		return errors.New(errors.CodeFailedPrecond, "no frames extracted from video").
			WithField("video_url", st.VideoURL)
	}

	st.SampledFrames = frames
	return nil
}
