/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind proxies
  3. requestLog: Structured request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/workers/*       Worker roster and advance ledger
  /api/stages/*        Stage catalog
  /api/lots/*          Production lots
  /api/jobworks/*      Work issuance
  /api/settlements/*   Pending work, preview, finalize
  /api/payments/*      Payment history
  /api/reports/*       Dashboard, labour, daily

SECURITY NOTE:
  No authentication middleware. The engine is deployed on a factory LAN
  behind the office network; all endpoints are open there.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rbstextile/piecework-engine/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Put("/{id}", h.UpdateWorker)
			r.Post("/{id}/active", h.SetWorkerActive)
			r.Get("/{id}/advances", h.ListWorkerAdvances)
			r.Post("/{id}/advances", h.RecordAdvance)
			r.Get("/{id}/advances/balance", h.GetAdvanceBalance)
		})

		// Stage catalog routes
		r.Route("/stages", func(r chi.Router) {
			r.Get("/", h.ListStages)
			r.Put("/{id}", h.UpdateStage)
		})

		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/", h.ListLots)
			r.Post("/", h.CreateLot)
			r.Get("/{id}", h.GetLot)
			r.Post("/{id}/status", h.SetLotStatus)
			r.Get("/{id}/progress", h.GetLotProgress)
		})

		// Job work routes
		r.Route("/jobworks", func(r chi.Router) {
			r.Get("/", h.ListJobWorks)
			r.Post("/", h.IssueWork)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/pending", h.ListPendingSettlements)
			r.Post("/preview", h.PreviewSettlement)
			r.Post("/finalize", h.FinalizeSettlement)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Get("/{id}", h.GetPayment)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/labour", h.GetLabourReport)
			r.Get("/daily", h.GetDailySummary)
		})
	})

	return r
}

// requestLog emits one structured line per request.
func requestLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
