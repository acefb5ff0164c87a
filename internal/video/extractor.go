// Package video downloads videos and samples frames from them using the
// yt-dlp, ffprobe and ffmpeg command line tools.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
)

const (
	downloadAttempts    = 3
	downloadBackoffStep = 5 * time.Second
)

// Extractor implements pipeline.FrameExtractor by shelling out to yt-dlp for
// the download and ffprobe/ffmpeg for duration and frame sampling.
type Extractor struct {
	ytdlp   string
	ffmpeg  string
	ffprobe string
	log     *logger.Logger

	sleep func(time.Duration)
}

// NewExtractor builds an extractor using tools found on PATH.
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Extractor{
		ytdlp:   "yt-dlp",
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		log:     log.WithComponent("video"),
		sleep:   time.Sleep,
	}
}

// Sample downloads the video into a temp dir, checks its duration against
// the limit and writes sampled frames into opts.TargetDir as
// frame_NNN.jpg in chronological order.
func (e *Extractor) Sample(ctx context.Context, videoURL string, opts pipeline.SampleOptions) ([]string, error) {
	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frames dir: %w", err)
	}

	tmp, err := os.MkdirTemp("", "prodshot-video-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	videoPath, err := e.download(ctx, NormalizeURL(videoURL), tmp)
	if err != nil {
		return nil, err
	}

	duration, err := e.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if opts.MaxDurationSeconds > 0 && duration > float64(opts.MaxDurationSeconds) {
		return nil, errors.Newf(errors.CodeFailedPrecond,
			"video duration %.0fs exceeds limit of %ds", duration, opts.MaxDurationSeconds)
	}

	return e.sampleFrames(ctx, videoPath, opts)
}

// download fetches the video with yt-dlp, retrying transient network
// failures with linear backoff. Worst single-file quality is enough for
// frame sampling and avoids a merge step.
func (e *Extractor) download(ctx context.Context, url, dir string) (string, error) {
	outTemplate := filepath.Join(dir, "video.%(ext)s")

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		cmd := exec.CommandContext(ctx, e.ytdlp,
			"--format", "worst",
			"--output", outTemplate,
			"--quiet",
			"--no-warnings",
			"--no-progress",
			"--socket-timeout", "120",
			url,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(stderr.String()))
			e.log.Warn("video download attempt failed",
				"attempt", attempt,
				"error", lastErr.Error(),
			)
			if attempt < downloadAttempts {
				e.sleep(downloadBackoffStep * time.Duration(attempt))
			}
			continue
		}

		matches, _ := filepath.Glob(filepath.Join(dir, "video.*"))
		if len(matches) == 0 {
			lastErr = fmt.Errorf("yt-dlp reported success but no file was written")
			continue
		}
		return matches[0], nil
	}

	return "", fmt.Errorf("unable to download video after %d attempts: %w", downloadAttempts, lastErr)
}

// probeDuration reads the container duration in seconds via ffprobe.
func (e *Extractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// sampleFrames writes one frame every IntervalSeconds, capped at MaxFrames.
func (e *Extractor) sampleFrames(ctx context.Context, videoPath string, opts pipeline.SampleOptions) ([]string, error) {
	interval := opts.IntervalSeconds
	if interval <= 0 {
		interval = 1
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", interval),
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.MaxFrames))
	}
	args = append(args, filepath.Join(opts.TargetDir, "frame_%03d.jpg"))

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	frames, err := ListFrames(opts.TargetDir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New(errors.CodeFailedPrecond, "no frames extracted from video")
	}
	return frames, nil
}

// ListFrames returns the frame files in a directory in chronological order.
// The zero-padded frame_NNN naming makes lexical order chronological.
func ListFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// NormalizeURL rewrites YouTube Shorts links into the regular watch format,
// which downloads more reliably.
func NormalizeURL(url string) string {
	const marker = "/shorts/"
	i := strings.Index(url, marker)
	if i < 0 {
		return url
	}
	id := url[i+len(marker):]
	if j := strings.IndexByte(id, '?'); j >= 0 {
		id = id[:j]
	}
	return "https://www.youtube.com/watch?v=" + id
}
