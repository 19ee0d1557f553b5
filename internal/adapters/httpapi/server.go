// Package httpapi exposes the garden service and the botanical proxy over
// HTTP.
package httpapi

import (
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gardenkeep/internal/core"
	"gardenkeep/internal/observability"
	"gardenkeep/pkg/domain"
)

// UserHeader carries the caller's anonymous identifier.
const UserHeader = "X-Garden-User"

// MaxUploadBytes bounds image uploads.
const MaxUploadBytes = 10 << 20

// Options configures the router.
type Options struct {
	Service *core.Service
	Images  *core.ImageService
	Logger  *zap.Logger
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// Server holds the handler dependencies.
type Server struct {
	svc      *core.Service
	images   *core.ImageService
	logger   core.Logger
	zap      *zap.Logger
	gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP handler for every route.
func NewRouter(opts Options) http.Handler {
	zl := opts.Logger
	if zl == nil {
		zl = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		svc:      opts.Service,
		images:   opts.Images,
		logger:   observability.NewZapLogger(zl),
		zap:      zl,
		gatherer: gatherer,
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/botanical", func(r chi.Router) {
		r.Get("/search", s.searchSpecies)
		r.Get("/species/{id}", s.getSpecies)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/plants", s.listPlants)
		r.Post("/plants", s.createPlant)
		r.Delete("/plants/{id}", s.deletePlant)

		r.Get("/favorites", s.listFavorites)
		r.Post("/favorites", s.addFavorite)
		r.Delete("/favorites/{id}", s.removeFavorite)

		r.Get("/chores", s.listChores)
		r.Post("/chores", s.createChore)
		r.Get("/chores/on/{date}", s.choresOnDate)
		r.Get("/chores/upcoming", s.upcomingChores)
		r.Post("/chores/{id}/toggle", s.toggleChore)
		r.Delete("/chores/{id}", s.deleteChore)

		r.Get("/schedules", s.listSchedules)
		r.Post("/schedules", s.createSchedule)
		r.Post("/schedules/evaluate", s.evaluateRecurrences)
		r.Post("/schedules/{id}/complete", s.completeSchedule)
		r.Delete("/schedules/{id}", s.deleteSchedule)

		r.Get("/images", s.listImages)
		r.Post("/images", s.uploadImage)
		r.Get("/images/*", s.getImage)
		r.Delete("/images/*", s.deleteImage)

		r.Get("/diagnostics/favorites", s.favoritesDiagnostics)
	})
	return r
}

// userOf returns the caller identity; a missing header is the sentinel user,
// which every store rejects.
func userOf(r *http.Request) domain.UserID {
	if id := r.Header.Get(UserHeader); id != "" {
		return domain.UserID(id)
	}
	return domain.NullUserID
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		defer func() {
			s.zap.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
