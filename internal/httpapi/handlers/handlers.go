package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"prodshot/internal/artifacts"
	"prodshot/internal/config"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/repositories"
	"prodshot/internal/worker/queue"
)

type Deps struct {
	Pool     *pgxpool.Pool
	RDB      *redis.Client
	Store    artifacts.Store
	Pipeline *pipeline.Pipeline
	Settings config.Settings
	Log      *logger.Logger
}

type Handler struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	store    artifacts.Store
	pipeline *pipeline.Pipeline
	jobs     *repositories.JobRepository
	queue    *queue.RedisQueue
	settings config.Settings
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	return &Handler{
		pool:     d.Pool,
		rdb:      d.RDB,
		store:    d.Store,
		pipeline: d.Pipeline,
		jobs:     repositories.NewJobRepository(d.Pool),
		queue:    queue.NewRedisQueue(d.RDB, d.Settings.QueueName),
		settings: d.Settings,
		log:      log.WithComponent("httpapi"),
	}
}
