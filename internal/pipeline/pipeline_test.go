package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prodshot/internal/artifacts"
	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
)

// fakeVision implements VisionModel with per-method overrides and call
// counting. Unset methods have benign defaults.
type fakeVision struct {
	identify  func(ctx context.Context, frames []string) (string, error)
	topFrames func(ctx context.Context, frames []string, n int) ([]int, error)
	bestFrame func(ctx context.Context, frames []string, product string) (int, error)
	segment   func(ctx context.Context, frame, product string) ([]byte, error)
	generate  func(ctx context.Context, prompt, image string) ([]byte, error)

	calls map[string]int
}

func (f *fakeVision) count(method string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *fakeVision) totalCalls() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeVision) IdentifyProduct(ctx context.Context, frames []string) (string, error) {
	f.count("identify")
	if f.identify != nil {
		return f.identify(ctx, frames)
	}
	return "Acme Widget", nil
}

func (f *fakeVision) SelectTopFrames(ctx context.Context, frames []string, n int) ([]int, error) {
	f.count("topFrames")
	if f.topFrames != nil {
		return f.topFrames(ctx, frames, n)
	}
	return []int{0, 1, 2}, nil
}

func (f *fakeVision) SelectBestFrame(ctx context.Context, frames []string, product string) (int, error) {
	f.count("bestFrame")
	if f.bestFrame != nil {
		return f.bestFrame(ctx, frames, product)
	}
	return 0, nil
}

func (f *fakeVision) Segment(ctx context.Context, frame, product string) ([]byte, error) {
	f.count("segment")
	if f.segment != nil {
		return f.segment(ctx, frame, product)
	}
	return []byte("segmented-image"), nil
}

func (f *fakeVision) GenerateShot(ctx context.Context, prompt, image string) ([]byte, error) {
	f.count("generate")
	if f.generate != nil {
		return f.generate(ctx, prompt, image)
	}
	return []byte("styled-shot"), nil
}

// fakeExtractor writes n frame files into the target dir, or fails.
type fakeExtractor struct {
	frames int
	err    error
}

func (f *fakeExtractor) Sample(ctx context.Context, videoURL string, opts SampleOptions) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, 0, f.frames)
	for i := 0; i < f.frames; i++ {
		p := filepath.Join(opts.TargetDir, fmt.Sprintf("frame_%03d.jpg", i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("frame-%d", i)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type fakeRemover struct {
	out   []byte
	err   error
	calls int
	input []byte
}

func (f *fakeRemover) Remove(ctx context.Context, image []byte) ([]byte, error) {
	f.calls++
	f.input = image
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return []byte("locally-removed"), nil
}

type testPipeline struct {
	*Pipeline
	root   string
	sleeps []time.Duration
}

func newTestPipeline(t *testing.T, v VisionModel, ext FrameExtractor, rem BackgroundRemover) *testPipeline {
	t.Helper()

	root := t.TempDir()
	p := New(Deps{
		Vision:  v,
		Frames:  ext,
		Remover: rem,
		Store:   artifacts.NewDir(root),
		Config: Config{
			StaticRoot:       root,
			FrameSampleRate:  2,
			MaxVideoDuration: 300,
			MaxFrames:        15,
		},
		Log: logger.New(logger.Config{Level: "error", Format: "text"}),
	})

	tp := &testPipeline{Pipeline: p, root: root}
	p.sleep = func(d time.Duration) { tp.sleeps = append(tp.sleeps, d) }
	return tp
}

func TestRunCompletes(t *testing.T) {
	vision := &fakeVision{}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, st.Status)
	}
	if st.ProductName == "" {
		t.Error("expected non-empty product name")
	}
	if len(st.SampledFrames) != 5 {
		t.Errorf("expected 5 sampled frames, got %d", len(st.SampledFrames))
	}
	if len(st.TopFrames) != 3 {
		t.Errorf("expected 3 top frames, got %d", len(st.TopFrames))
	}

	found := false
	for _, f := range st.TopFrames {
		if f == st.BestFramePath {
			found = true
		}
	}
	if !found {
		t.Errorf("best frame %s is not one of the top frames", st.BestFramePath)
	}

	if _, err := os.Stat(st.SegmentedImagePath); err != nil {
		t.Errorf("segmented image not written: %v", err)
	}
	if len(st.EnhancedShots) != 2 {
		t.Fatalf("expected exactly 2 enhanced shots, got %d", len(st.EnhancedShots))
	}
}

func TestDurationExceededFailsBeforeVisionCalls(t *testing.T) {
	vision := &fakeVision{}
	ext := &fakeExtractor{err: errors.Newf(errors.CodeFailedPrecond, "video duration 400s exceeds limit of 300s")}
	tp := newTestPipeline(t, vision, ext, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, st.Status)
	}
	if st.Stage != "extract_frames" {
		t.Errorf("expected failure in extract_frames, got %s", st.Stage)
	}
	if vision.totalCalls() != 0 {
		t.Errorf("expected no vision calls, got %d", vision.totalCalls())
	}
	// The extractor's input-fault code survives the stage wrapping.
	if !errors.IsCode(err, errors.CodeFailedPrecond) {
		t.Errorf("expected %s, got %s", errors.CodeFailedPrecond, errors.GetCode(err))
	}
}

func TestTransientDownloadFailureIsNotAnInputFault(t *testing.T) {
	ext := &fakeExtractor{err: fmt.Errorf("yt-dlp: connection reset by peer")}
	tp := newTestPipeline(t, &fakeVision{}, ext, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, st.Status)
	}
	if errors.IsCode(err, errors.CodeFailedPrecond) {
		t.Error("network failure must not be coded as an input precondition")
	}
	if got := errors.GetCode(err); got != errors.CodeInternal {
		t.Errorf("expected %s, got %s", errors.CodeInternal, got)
	}
}

func TestTopFramesPassThroughWithoutModelCall(t *testing.T) {
	vision := &fakeVision{}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 3}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vision.calls["topFrames"] != 0 {
		t.Errorf("expected no top frame selection call for 3 frames, got %d", vision.calls["topFrames"])
	}
	if len(st.TopFrames) != 3 {
		t.Errorf("expected all 3 frames as top frames, got %d", len(st.TopFrames))
	}
}

func TestTopFrameSelectionErrorIsFatal(t *testing.T) {
	vision := &fakeVision{
		topFrames: func(ctx context.Context, frames []string, n int) ([]int, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Stage != "select_top_frames" {
		t.Errorf("expected failure in select_top_frames, got %s", st.Stage)
	}
}

func TestEmptyProductNameIsFatal(t *testing.T) {
	vision := &fakeVision{
		identify: func(ctx context.Context, frames []string) (string, error) {
			return "   ", nil
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, st.Status)
	}
	if st.Stage != "identify_product" {
		t.Errorf("expected failure in identify_product, got %s", st.Stage)
	}
}

func TestBestFrameThirdAttemptSucceeds(t *testing.T) {
	attempts := 0
	vision := &fakeVision{
		bestFrame: func(ctx context.Context, frames []string, product string) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, fmt.Errorf("quota exceeded, 429")
			}
			return 2, nil
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if st.BestFramePath != st.TopFrames[2] {
		t.Errorf("expected third attempt's pick %s, got %s", st.TopFrames[2], st.BestFramePath)
	}
}

func TestBestFrameAllAttemptsFailFallsBackToFirst(t *testing.T) {
	vision := &fakeVision{
		bestFrame: func(ctx context.Context, frames []string, product string) (int, error) {
			return 0, fmt.Errorf("model unavailable")
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if vision.calls["bestFrame"] != bestFrameAttempts {
		t.Errorf("expected %d attempts, got %d", bestFrameAttempts, vision.calls["bestFrame"])
	}
	if st.BestFramePath != st.TopFrames[0] {
		t.Errorf("expected fallback to first top frame %s, got %s", st.TopFrames[0], st.BestFramePath)
	}
}

func TestBestFrameOutOfRangeFallsBackToFirst(t *testing.T) {
	vision := &fakeVision{
		bestFrame: func(ctx context.Context, frames []string, product string) (int, error) {
			return 99, nil
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if st.BestFramePath != st.TopFrames[0] {
		t.Errorf("expected fallback to first top frame, got %s", st.BestFramePath)
	}
}

func TestBestFrameQuotaDelayIsHonored(t *testing.T) {
	vision := &fakeVision{
		bestFrame: func(ctx context.Context, frames []string, product string) (int, error) {
			return 0, fmt.Errorf(`quota exceeded, "retryDelay": "7s"`)
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	if _, err := tp.Run(context.Background(), "job-1", "https://example.com/v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tp.sleeps) < 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(tp.sleeps))
	}
	if tp.sleeps[0] != 7*time.Second || tp.sleeps[1] != 7*time.Second {
		t.Errorf("expected provider-suggested 7s delays, got %v", tp.sleeps[:2])
	}
}

func TestSegmentationFallsBackToLocalRemover(t *testing.T) {
	vision := &fakeVision{
		segment: func(ctx context.Context, frame, product string) ([]byte, error) {
			return nil, fmt.Errorf("RESOURCE_EXHAUSTED")
		},
	}
	rem := &fakeRemover{out: []byte("local-cutout")}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, rem)

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}

	if vision.calls["segment"] != 1 {
		t.Errorf("expected exactly 1 primary segmentation attempt, got %d", vision.calls["segment"])
	}
	if rem.calls != 1 {
		t.Errorf("expected exactly 1 remover call, got %d", rem.calls)
	}

	source, err := os.ReadFile(st.BestFramePath)
	if err != nil {
		t.Fatalf("reading best frame: %v", err)
	}
	if string(rem.input) != string(source) {
		t.Error("remover did not receive the best frame's bytes")
	}

	written, err := os.ReadFile(st.SegmentedImagePath)
	if err != nil {
		t.Fatalf("reading segmented image: %v", err)
	}
	if string(written) != "local-cutout" {
		t.Errorf("expected remover output persisted, got %q", written)
	}
}

func TestSegmentationBothStrategiesExhaustedIsFatal(t *testing.T) {
	vision := &fakeVision{
		segment: func(ctx context.Context, frame, product string) ([]byte, error) {
			return nil, fmt.Errorf("primary boom")
		},
	}
	rem := &fakeRemover{err: fmt.Errorf("fallback boom")}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, rem)

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, st.Status)
	}
	if !strings.Contains(err.Error(), "fallback boom") {
		t.Errorf("expected fallback error reported, got: %v", err)
	}
	if !strings.Contains(fmt.Sprintf("%v", err), "both segmentation strategies failed") {
		t.Errorf("expected combined failure message, got: %v", err)
	}
}

func TestEnhancementSkipsFailingStylesAndPads(t *testing.T) {
	vision := &fakeVision{
		generate: func(ctx context.Context, prompt, image string) ([]byte, error) {
			if strings.Contains(prompt, "lifestyle product shot") {
				return []byte("lifestyle-shot"), nil
			}
			return nil, fmt.Errorf("429 quota")
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("enhancement must never fail the job: %v", err)
	}

	if len(st.EnhancedShots) != 2 {
		t.Fatalf("expected exactly 2 shots, got %d", len(st.EnhancedShots))
	}
	if st.EnhancedShots[0] != st.EnhancedShots[1] {
		t.Error("expected the second entry to duplicate the lifestyle shot")
	}
	if !strings.Contains(st.EnhancedShots[0], "enhanced_lifestyle.png") {
		t.Errorf("expected lifestyle shot path, got %s", st.EnhancedShots[0])
	}

	written, err := os.ReadFile(st.EnhancedShots[0])
	if err != nil {
		t.Fatalf("reading enhanced shot: %v", err)
	}
	if string(written) != "lifestyle-shot" {
		t.Errorf("unexpected shot contents %q", written)
	}
}

func TestEnhancementAllStylesFailPadsWithSegmentedImage(t *testing.T) {
	vision := &fakeVision{
		generate: func(ctx context.Context, prompt, image string) ([]byte, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("enhancement must never fail the job: %v", err)
	}

	if len(st.EnhancedShots) != 2 {
		t.Fatalf("expected exactly 2 shots, got %d", len(st.EnhancedShots))
	}
	for i, shot := range st.EnhancedShots {
		if shot != st.SegmentedImagePath {
			t.Errorf("shot %d: expected segmented image fallback, got %s", i, shot)
		}
	}
	// Every style gets its full retry budget before being skipped.
	if vision.calls["generate"] != len(enhancementStyles)*enhanceAttempts {
		t.Errorf("expected %d generation attempts, got %d",
			len(enhancementStyles)*enhanceAttempts, vision.calls["generate"])
	}
}

func TestEnhancementStopsAfterTwoSuccesses(t *testing.T) {
	vision := &fakeVision{}
	tp := newTestPipeline(t, vision, &fakeExtractor{frames: 5}, &fakeRemover{})

	st, err := tp.Run(context.Background(), "job-1", "https://example.com/v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vision.calls["generate"] != 2 {
		t.Errorf("expected loop to stop after 2 successes, got %d calls", vision.calls["generate"])
	}
	if len(st.EnhancedShots) != 2 {
		t.Fatalf("expected exactly 2 shots, got %d", len(st.EnhancedShots))
	}
	if st.EnhancedShots[0] == st.EnhancedShots[1] {
		t.Error("expected two distinct styled shots")
	}
}
