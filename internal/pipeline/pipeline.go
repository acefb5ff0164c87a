// Package pipeline turns a video URL into a segmented product image plus two
// stylized marketing shots by chaining vision-model calls and two local image
// utilities. The six stages run strictly in order over one WorkflowState;
// quota-limited provider calls are retried with backoff, and every stage that
// can fall back does so deterministically, so a job always terminates in a
// well-defined state.
package pipeline

import (
	"context"
	"time"

	"prodshot/internal/artifacts"
	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
)

// VisionModel is the external vision/image-generation provider. Any call may
// fail with a provider error the pipeline classifies as quota-related or
// other; see classifyError.
type VisionModel interface {
	// IdentifyProduct names the product shown in the frames.
	IdentifyProduct(ctx context.Context, framePaths []string) (string, error)
	// SelectTopFrames picks n representative frame indices.
	SelectTopFrames(ctx context.Context, framePaths []string, n int) ([]int, error)
	// SelectBestFrame returns a 0-based index into framePaths.
	SelectBestFrame(ctx context.Context, framePaths []string, productName string) (int, error)
	// Segment removes the background and returns the isolated product image.
	Segment(ctx context.Context, framePath, productName string) ([]byte, error)
	// GenerateShot produces a styled image from the segmented product.
	GenerateShot(ctx context.Context, prompt, imagePath string) ([]byte, error)
}

// SampleOptions controls frame sampling.
type SampleOptions struct {
	TargetDir          string
	IntervalSeconds    int
	MaxDurationSeconds int
	MaxFrames          int
}

// FrameExtractor downloads a video and samples frames at a fixed interval,
// writing them under TargetDir in chronological order.
type FrameExtractor interface {
	Sample(ctx context.Context, videoURL string, opts SampleOptions) ([]string, error)
}

// BackgroundRemover is the local segmentation fallback. No quota semantics.
type BackgroundRemover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

// Config carries the tunables the stages need.
type Config struct {
	StaticRoot       string
	FrameSampleRate  int
	MaxVideoDuration int
	MaxFrames        int
}

// Deps are the collaborators injected into a Pipeline. Construct them once
// and pass them in; tests substitute fakes per call.
type Deps struct {
	Vision  VisionModel
	Frames  FrameExtractor
	Remover BackgroundRemover
	Store   artifacts.Store
	Config  Config
	Log     *logger.Logger
}

// Pipeline runs jobs. It holds no per-job state; a single Pipeline is safe
// for concurrent jobs as long as its collaborators are.
type Pipeline struct {
	vision  VisionModel
	frames  FrameExtractor
	remover BackgroundRemover
	store   artifacts.Store
	cfg     Config
	log     *logger.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.Config.MaxFrames <= 0 {
		d.Config.MaxFrames = defaultMaxFrames
	}

	return &Pipeline{
		vision:  d.Vision,
		frames:  d.Frames,
		remover: d.Remover,
		store:   d.Store,
		cfg:     d.Config,
		log:     log.WithComponent("pipeline"),
		sleep:   time.Sleep,
	}
}

const defaultMaxFrames = 15

type stage struct {
	name string
	run  func(ctx context.Context, st *WorkflowState, paths JobPaths) error
}

// Run executes the six stages in order, short-circuiting on the first fatal
// error. The returned state is always non-nil; on failure its Status is
// StatusFailed and Stage names the stage that aborted.
func (p *Pipeline) Run(ctx context.Context, jobID, videoURL string) (*WorkflowState, error) {
	log := p.log.WithJobID(jobID)

	st := &WorkflowState{
		JobID:    jobID,
		VideoURL: videoURL,
		Status:   StatusPending,
	}

	paths, err := EnsureJobPaths(p.cfg.StaticRoot, jobID)
	if err != nil {
		st.Status = StatusFailed
		return st, errors.Wrap(err, "pipeline.paths", "failed to allocate job directories")
	}

	stages := []stage{
		{"extract_frames", p.extractFrames},
		{"select_top_frames", p.selectTopFrames},
		{"identify_product", p.identifyProduct},
		{"select_best_frame", p.selectBestFrame},
		{"segment_image", p.segmentImage},
		{"enhance_images", p.enhanceImages},
	}

	st.Status = StatusRunning
	start := time.Now()

	for _, s := range stages {
		st.Stage = s.name
		stageLog := log.WithStage(s.name)
		stageLog.Debug("stage started")
		stageStart := time.Now()

		if err := s.run(ctx, st, paths); err != nil {
			st.Status = StatusFailed
			stageLog.Error("stage failed",
				"error", err.Error(),
				"duration_ms", time.Since(stageStart).Milliseconds(),
			)
			return st, err
		}

		stageLog.Debug("stage completed",
			"duration_ms", time.Since(stageStart).Milliseconds(),
		)
	}

	st.Status = StatusCompleted
	log.Info("pipeline completed",
		"product", st.ProductName,
		"shots", len(st.EnhancedShots),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return st, nil
}
