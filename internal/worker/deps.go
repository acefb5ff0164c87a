package worker

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"prodshot/internal/artifacts"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/logger"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	QueueName string

	Pipeline *pipeline.Pipeline
	Store    artifacts.Store

	// StaticRoot is the directory job output trees live under.
	StaticRoot string
	// JobRetention is how long finished job trees are kept on disk.
	JobRetention time.Duration

	Log *logger.Logger
}
