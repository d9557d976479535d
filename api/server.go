/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP:     Client address behind a proxy
  3. Logger:     zap request log
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counter and latency
  6. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/workers, /api/places             Master data
  /api/overlock, /api/tassel,
  /api/fold, /api/deliveries            Stage entries
  /api/availability/*                   Remaining quantity per stage
  /api/reports/*, /api/dashboard,
  /api/status                           Rollups
  /api/data                             Clear all data
  /api/scenarios/*                      Demo data
  /metrics                              Prometheus scrape
  /*                                    Static files (frontend), if built

STATIC FILE SERVING:
  When Options.StaticDir exists, serves the built frontend from it and
  falls back to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/warp/towel-workflow/production"
)

// Options configures NewRouter. Zero values are usable.
type Options struct {
	CORSOrigins []string
	Logger      *zap.Logger
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  *HTTPMetrics
	// StaticDir holds a built frontend. Empty disables static serving.
	StaticDir string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewHTTPMetrics(nil)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(Instrument(metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Delete("/{id}", h.DeleteWorker)
		})

		r.Route("/places", func(r chi.Router) {
			r.Get("/", h.ListPlaces)
			r.Post("/", h.CreatePlace)
			r.Delete("/{id}", h.DeletePlace)
		})

		// Stage entries
		r.Route("/overlock", func(r chi.Router) {
			r.Get("/", h.ListOverlock)
			r.Post("/", h.CreateOverlock)
			r.Delete("/{id}", h.DeleteEntry(production.StageOverlock))
		})
		r.Route("/tassel", func(r chi.Router) {
			r.Get("/", h.ListTassel)
			r.Post("/", h.CreateTassel)
			r.Delete("/{id}", h.DeleteEntry(production.StageTassel))
		})
		r.Route("/fold", func(r chi.Router) {
			r.Get("/", h.ListFold)
			r.Post("/", h.CreateFold)
			r.Delete("/{id}", h.DeleteEntry(production.StageFold))
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", h.ListDeliveries)
			r.Post("/", h.CreateDelivery)
			r.Delete("/{id}", h.DeleteEntry(production.StageDelivery))
		})

		r.Route("/availability", func(r chi.Router) {
			r.Get("/tassel", h.TasselAvailability)
			r.Get("/fold", h.FoldAvailability)
			r.Get("/delivery", h.DeliveryAvailability)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/workers", h.WorkerReport)
			r.Get("/daily", h.DailyReport)
			r.Get("/weeks", h.RecentWeeks)
		})
		r.Get("/dashboard", h.Dashboard)
		r.Get("/status", h.EntryStatuses)

		r.Delete("/data", h.ClearAll)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if opts.StaticDir != "" {
		if _, err := os.Stat(opts.StaticDir); err == nil {
			serveStatic(r, opts.StaticDir)
		} else {
			logger.Warn("static dir not found, frontend disabled", zap.String("dir", opts.StaticDir))
		}
	}

	return r
}

func serveStatic(r chi.Router, staticDir string) {
	fileServer := http.FileServer(http.Dir(staticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))

		// SPA routing: unknown paths get index.html
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
