package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/utils"
)

// NewRouter mounts probes, /metrics and the /api surface. col may be nil.
func NewRouter(cfg *config.Config, log *zap.Logger, h *Handler, col *metrics.Collectors) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.Recoverer(log))
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	if col != nil {
		mux.Use(utils.Instrument(col.Requests, col.Duration))
	}
	mux.Use(utils.CORS(cfg.CORS, cfg.App.Environment, log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			respondProblem(w, http.StatusServiceUnavailable, ErrorTypeUnavailable, "state not loaded")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ready",
			"revision": h.st.Revision(),
			"dirty":    h.st.Dirty(),
		})
	})
	if col != nil {
		mux.Method(http.MethodGet, "/metrics", col.Handler())
	}

	mux.Route("/api", func(r chi.Router) {
		r.Use(utils.RateLimit(cfg.RateLimit, func(w http.ResponseWriter, _ *http.Request) {
			respondProblem(w, http.StatusTooManyRequests, ErrorTypeRateLimited, "rate limit exceeded")
		}))
		if d := cfg.Server.RequestTimeoutDuration(); d > 0 {
			r.Use(middleware.Timeout(d))
		}
		r.Use(maxBody(cfg.Server.MaxBodyMB << 20))

		r.Get("/data", h.getData)
		r.Post("/save", h.save)

		r.Get("/kpis", h.kpis)
		r.Get("/kpis/breakdown", h.breakdown)
		r.Get("/goals", h.goals)

		r.Route("/logs", func(r chi.Router) {
			r.Post("/", h.addLog)
			r.Put("/{id}", h.updateLog)
			r.Delete("/{id}", h.deleteLog)
		})

		r.Put("/config/targets", h.putTargets)
		r.Put("/config/flags", h.putFlags)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.addAccount)
			r.Put("/{id}", h.updateAccount)
			r.Delete("/{id}", h.deleteAccount)
			r.Post("/{id}/rename", h.renameAccount)
		})

		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", h.addExperiment)
			r.Put("/{id}", h.updateExperiment)
			r.Delete("/{id}", h.deleteExperiment)
			r.Get("/{id}/evaluation", h.evaluation)
			r.Post("/{id}/variants", h.addVariant)
			r.Delete("/{id}/variants/{variantId}", h.removeVariant)
		})

		r.Route("/prospects", func(r chi.Router) {
			r.Get("/board", h.board)
			r.Post("/", h.addProspect)
			r.Put("/{id}", h.updateProspect)
			r.Delete("/{id}", h.deleteProspect)
			r.Post("/{id}/stage", h.moveProspect)
		})

		r.Get("/export.csv", h.exportCSV)
		r.Post("/import.csv", h.importCSV)

		r.Post("/sync/pull", h.syncPull)
		r.Post("/sync/push", h.syncPush)
	})

	return mux
}

func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
