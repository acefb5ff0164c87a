package processor

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"prodshot/internal/models"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/errors"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/repositories"
)

type Deps struct {
	Pool       *pgxpool.Pool
	Pipeline   *pipeline.Pipeline
	StaticRoot string
	Log        *logger.Logger
}

// Processor runs one queued job end to end: load the row, mark it running,
// execute the pipeline, persist the result or the failure.
type Processor struct {
	repo       *repositories.JobRepository
	pipeline   *pipeline.Pipeline
	staticRoot string
	log        *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	return &Processor{
		repo:       repositories.NewJobRepository(d.Pool),
		pipeline:   d.Pipeline,
		staticRoot: d.StaticRoot,
		log:        log.WithComponent("processor"),
	}
}

func (p *Processor) ProcessJob(ctx context.Context, jobID string) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	log.Debug("fetching job")
	job, err := p.repo.Get(ctx, jobID)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.fetch", "failed to fetch job"))
	}

	log.Debug("marking job as running")
	if err := p.repo.MarkRunning(ctx, jobID); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.status", "failed to mark job as running"))
	}

	log.Info("starting pipeline", "video_url", job.VideoURL)
	state, err := p.pipeline.Run(ctx, jobID, job.VideoURL)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrapf(err, "processor.pipeline", "pipeline failed at stage %s", state.Stage))
	}

	result, err := models.ResultFromState(state, p.staticRoot)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.result", "failed to map result URLs"))
	}

	log.Debug("saving job result", "product", result.ProductName)
	if err := p.repo.MarkDone(ctx, jobID, result); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.save", "failed to save job result"))
	}

	return nil
}

func (p *Processor) failJob(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	msg := ""
	if cause != nil {
		msg = cause.Error()

		var codedErr *errors.Error
		if errors.As(cause, &codedErr) {
			log.Error("job failed",
				"code", string(codedErr.Code),
				"op", codedErr.Op,
				"message", codedErr.Message,
			)
		} else {
			log.Error("job failed", "error", msg)
		}
	}

	if err := p.repo.MarkFailed(ctx, jobID, msg); err != nil {
		log.Warn("failed to persist job failure", "error", err.Error())
	}

	return cause
}
