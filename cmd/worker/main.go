package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"prodshot/internal/artifacts"
	"prodshot/internal/config"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/segment"
	"prodshot/internal/video"
	"prodshot/internal/vision"
	"prodshot/internal/worker"
)

func main() {
	log := logger.New(logger.Config{
		Level:       config.Env("LOG_LEVEL", "info"),
		Format:      config.Env("LOG_FORMAT", "json"),
		ServiceName: "prodshot-worker",
		AddSource:   config.BoolEnv("LOG_SOURCE", false),
	})

	settings, err := config.Load()
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}
	if err := settings.EnsureDirectories(); err != nil {
		log.LogFatal("failed to create static root", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, settings.DatabaseURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
	defer rdb.Close()

	visionClient, err := vision.NewClient(ctx, vision.Config{
		ProjectID:  settings.GCPProject,
		Region:     settings.VertexRegion,
		TextModel:  settings.TextModel,
		ImageModel: settings.ImageModel,
	})
	if err != nil {
		log.LogFatal("failed to initialize vision client", err)
	}
	defer visionClient.Close()

	store := artifacts.NewDir(settings.StaticDir)

	pipe := pipeline.New(pipeline.Deps{
		Vision:  visionClient,
		Frames:  video.NewExtractor(log),
		Remover: segment.NewRemover(),
		Store:   store,
		Config: pipeline.Config{
			StaticRoot:       settings.StaticDir,
			FrameSampleRate:  settings.FrameSampleRate,
			MaxVideoDuration: settings.MaxVideoDuration,
			MaxFrames:        settings.MaxFrames,
		},
		Log: log,
	})

	log.Info("prodshot worker started", "queue", settings.QueueName)

	err = worker.Run(ctx, worker.Deps{
		Pool:         pool,
		RDB:          rdb,
		QueueName:    settings.QueueName,
		Pipeline:     pipe,
		Store:        store,
		StaticRoot:   settings.StaticDir,
		JobRetention: settings.JobRetention,
		Log:          log,
	})
	if err != nil && ctx.Err() == nil {
		log.LogFatal("worker stopped unexpectedly", err)
	}
	log.Info("worker stopped")
}
