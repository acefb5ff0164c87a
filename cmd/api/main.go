package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"prodshot/internal/artifacts"
	"prodshot/internal/config"
	"prodshot/internal/httpapi"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/pkg/shutdown"
	"prodshot/internal/segment"
	"prodshot/internal/video"
	"prodshot/internal/vision"
)

func main() {
	log := logger.New(logger.Config{
		Level:       config.Env("LOG_LEVEL", "info"),
		Format:      config.Env("LOG_FORMAT", "json"),
		ServiceName: "prodshot-api",
		AddSource:   config.BoolEnv("LOG_SOURCE", false),
	})

	log.Info("starting prodshot API",
		"version", "0.1.0",
	)

	settings, err := config.Load()
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}
	if err := settings.EnsureDirectories(); err != nil {
		log.LogFatal("failed to create static root", err)
	}

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, settings.DatabaseURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	log.Info("initializing vision client",
		"project", settings.GCPProject,
		"region", settings.VertexRegion,
	)
	visionClient, err := vision.NewClient(ctx, vision.Config{
		ProjectID:  settings.GCPProject,
		Region:     settings.VertexRegion,
		TextModel:  settings.TextModel,
		ImageModel: settings.ImageModel,
	})
	if err != nil {
		log.LogFatal("failed to initialize vision client", err)
	}
	shutdownMgr.Register("vision", func(ctx context.Context) error {
		return visionClient.Close()
	})

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

	router := httpapi.NewRouter(httpapi.Deps{
		Pool:     pool,
		RDB:      rdb,
		Store:    store,
		Pipeline: pipe,
		Settings: settings,
		Log:      log,
	})

	readTimeout, writeTimeout, idleTimeout := httpapi.ServerTimeouts()
	server := &http.Server{
		Addr:         "0.0.0.0:" + settings.HTTPPort,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", settings.HTTPPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
