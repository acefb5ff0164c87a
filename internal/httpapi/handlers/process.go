package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"prodshot/internal/httpkit"
	"prodshot/internal/models"
	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/repositories"
)

type ProcessVideoRequest struct {
	VideoURL string `json:"video_url"`
}

type ProcessVideoResponse struct {
	Status                string   `json:"status"`
	JobID                 string   `json:"job_id"`
	ProductName           string   `json:"product_name,omitempty"`
	KeyFrameURL           string   `json:"key_frame_url,omitempty"`
	SegmentedImageURL     string   `json:"segmented_image_url,omitempty"`
	EnhancedShots         []string `json:"enhanced_shots,omitempty"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds,omitempty"`
	Message               string   `json:"message,omitempty"`
}

// ProcessVideo runs the whole pipeline synchronously and returns the result
// URLs. The job is also recorded in the jobs table for history.
func (h *Handler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessVideoRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := validateVideoURL(req.VideoURL); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", err.Error(), map[string]any{"field": "video_url"})
		return
	}

	jobID := uuid.NewString()
	ctx = logger.ContextWithJobID(ctx, jobID)
	log := h.log.FromContext(ctx)

	job := &models.Job{ID: jobID, VideoURL: req.VideoURL, Status: models.JobStatusRunning}
	if err := h.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repositories.ErrJobExists) {
			httpkit.WriteErr(w, 409, "CONFLICT", "job already exists", map[string]any{"job_id": jobID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	log.Info("processing video", "video_url", req.VideoURL)
	start := time.Now()

	state, err := h.pipeline.Run(ctx, jobID, req.VideoURL)
	if err != nil {
		_ = h.jobs.MarkFailed(ctx, jobID, err.Error())
		status := errors.GetHTTPStatus(err)
		if errors.IsCode(err, errors.CodeFailedPrecond) {
			// Bad input video, not a server fault.
			status = 400
		}
		httpkit.WriteJSON(w, status, ProcessVideoResponse{
			Status:  "error",
			JobID:   jobID,
			Message: err.Error(),
		})
		return
	}

	result, err := models.ResultFromState(state, h.settings.StaticDir)
	if err != nil {
		_ = h.jobs.MarkFailed(ctx, jobID, err.Error())
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "failed to map result URLs", nil)
		return
	}

	if err := h.jobs.MarkDone(ctx, jobID, result); err != nil {
		log.Warn("failed to persist job result", "error", err.Error())
	}

	httpkit.WriteJSON(w, 200, ProcessVideoResponse{
		Status:                "success",
		JobID:                 jobID,
		ProductName:           result.ProductName,
		KeyFrameURL:           result.KeyFrameURL,
		SegmentedImageURL:     result.SegmentedImageURL,
		EnhancedShots:         result.EnhancedShots,
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	})
}

func validateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.Validation("video_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Validation("video_url must be an absolute http(s) URL")
	}
	return nil
}
