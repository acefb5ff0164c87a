package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prodshot/internal/httpkit"
	"prodshot/internal/models"
	"prodshot/internal/repositories"
)

type CreateJobRequest struct {
	VideoURL string `json:"video_url"`
}

// PostJob queues a job for the worker and returns immediately.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateJobRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if err := validateVideoURL(req.VideoURL); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", err.Error(), map[string]any{"field": "video_url"})
		return
	}

	job := &models.Job{
		ID:       uuid.NewString(),
		VideoURL: strings.TrimSpace(req.VideoURL),
		Status:   models.JobStatusQueued,
	}
	if err := h.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repositories.ErrJobExists) {
			httpkit.WriteErr(w, 409, "CONFLICT", "job already exists", map[string]any{"job_id": job.ID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	if err := h.queue.Push(ctx, job.ID); err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "queue push failed", nil)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{"job": job})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 50
	if v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit"))); err == nil && v > 0 && v <= 200 {
		limit = v
	}

	jobs, err := h.jobs.List(ctx, status, limit)
	if err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"jobs": jobs})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			httpkit.WriteErr(w, 404, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"job": job})
}
