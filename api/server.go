/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLog: Structured access log (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/postings/*      Posting configuration, allocations, payroll export
  /api/offerings/*     Offering facts and extra BU
  /api/descriptions/*  Duty descriptions
  /api/contracts/*     Contract lifecycle, assignments, letters, TUGs
  /api/scenarios/*     Demo data

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/taengine/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLog(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Batch-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/postings", func(r chi.Router) {
			r.Post("/", h.CreatePosting)
			r.Get("/{id}", h.GetPosting)
			r.Get("/{id}/allocations", h.ListAllocations)
			r.Get("/{id}/allocations.xlsx", h.AllocationReport)
			r.Get("/{id}/offerings/{offering}/allocation", h.GetOfferingAllocation)
			r.Get("/{id}/contracts", h.ListContracts)
			r.Post("/{id}/contracts", h.CreateContract)
			r.Post("/{id}/payroll", h.ExportPayroll)
		})

		r.Route("/offerings", func(r chi.Router) {
			r.Post("/", h.SaveOffering)
			r.Get("/{id}", h.GetOffering)
			r.Get("/{id}/allocation", h.GetAllocation)
		})

		r.Route("/descriptions", func(r chi.Router) {
			r.Get("/", h.ListDescriptions)
			r.Post("/", h.SaveDescription)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/{id}", h.GetContract)
			r.Post("/{id}/transitions", h.TransitionContract)
			r.Post("/{id}/reopen", h.ReopenContract)
			r.Put("/{id}/assignments", h.ReviseAssignments)
			r.Get("/{id}/letter", h.GetLetter)
			r.Post("/{id}/tug/{offering}", h.ValidateTUG)
		})
	})

	return r
}

// RequestLog logs one line per request: errors at error level, client errors
// at warn, everything else at info.
func RequestLog(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			}
			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}
