package processor

import (
	"context"
	"time"

	"prodshot/internal/artifacts"
	"prodshot/internal/pkg/logger"
)

// Janitor prunes job output trees older than the retention window. The
// pipeline itself never deletes a tree; serving lifetime is a deployment
// concern, decided here.
type Janitor struct {
	store     artifacts.Store
	root      string
	retention time.Duration
	log       *logger.Logger

	now func() time.Time
}

func NewJanitor(store artifacts.Store, root string, retention time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Janitor{
		store:     store,
		root:      root,
		retention: retention,
		log:       log.WithComponent("janitor"),
		now:       time.Now,
	}
}

// Run sweeps on the given interval until ctx is canceled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep removes every job tree whose last modification is older than the
// retention window. Errors are logged, never fatal.
func (j *Janitor) Sweep(ctx context.Context) {
	trees, err := artifacts.ListJobTrees(j.root)
	if err != nil {
		j.log.Warn("janitor listing failed", "error", err.Error())
		return
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0

	for _, tree := range trees {
		if tree.Modified.After(cutoff) {
			continue
		}
		if err := j.store.RemoveTree(ctx, tree.JobID); err != nil {
			j.log.Warn("janitor failed to remove job tree",
				"job_id", tree.JobID,
				"error", err.Error(),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.log.Info("janitor pruned expired job trees", "removed", removed)
	}
}
