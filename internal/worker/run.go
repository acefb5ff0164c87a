package worker

import (
	"context"
	"time"

	"prodshot/internal/pkg/logger"
	"prodshot/internal/worker/processor"
	"prodshot/internal/worker/queue"
)

// janitorInterval is how often finished job trees are checked for expiry.
const janitorInterval = time.Hour

// Run consumes job IDs from the queue until ctx is canceled. Each job runs
// its pipeline stages sequentially on this goroutine; run one worker per
// desired level of job concurrency.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	q := queue.NewRedisQueue(d.RDB, d.QueueName)

	p := processor.New(processor.Deps{
		Pool:       d.Pool,
		Pipeline:   d.Pipeline,
		StaticRoot: d.StaticRoot,
		Log:        log,
	})

	if d.JobRetention > 0 {
		j := processor.NewJanitor(d.Store, d.StaticRoot, d.JobRetention, log)
		go j.Run(ctx, janitorInterval)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		// Use a separate context with timeout for queue operations
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		jobID, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			// Check if it's a context cancellation
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if jobID == "" {
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, jobID)
		jobLog := log.WithJobID(jobID)

		jobLog.Info("processing job")
		startTime := time.Now()

		if err := p.ProcessJob(jobCtx, jobID); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			jobLog.Info("job completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}
