package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"prodshot/internal/artifacts"
	"prodshot/internal/config"
	"prodshot/internal/httpapi/handlers"
	"prodshot/internal/httpkit"
	"prodshot/internal/pipeline"
	"prodshot/internal/pkg/logger"
	"prodshot/internal/pkg/middleware"
)

type Deps struct {
	Pool     *pgxpool.Pool
	RDB      *redis.Client
	Store    artifacts.Store
	Pipeline *pipeline.Pipeline
	Settings config.Settings
	Log      *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Pool:     d.Pool,
		RDB:      d.RDB,
		Store:    d.Store,
		Pipeline: d.Pipeline,
		Settings: d.Settings,
		Log:      log,
	})

	r.Get("/health", h.Health)

	// Synchronous run: blocks until the pipeline completes. Generous write
	// timeout is configured on the server; a full run can take minutes.
	r.Post("/api/process-video", h.ProcessVideo)

	// Async job flow backed by the queue and the worker.
	r.Post("/jobs", h.PostJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{jobId}", h.GetJob)

	// Job output trees.
	fs := http.FileServer(http.Dir(d.Settings.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", neuterDirListing(fs)))

	return r
}

// neuterDirListing refuses directory index requests on the static mount.
func neuterDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") || r.URL.Path == "" {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// ServerTimeouts returns the HTTP server timeouts. The synchronous
// process-video endpoint keeps a connection open for a whole pipeline run.
func ServerTimeouts() (read, write, idle time.Duration) {
	return 30 * time.Second, 15 * time.Minute, 120 * time.Second
}
