/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging with a request-scoped logger in context
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/sales/*          Sale submission and decisions
  /api/sales-persons/*  Per sales person statistics
  /api/loans/*          Loan applications, decisions, repayments
  /api/borrowers/*      Per borrower statistics
  /api/products/*       Catalog
  /api/users/*          Directory
  /api/funds/*          Fund balances and adjustments
  /api/settings/*       System settings
  /api/reports/*        Business reports
  /api/seed             Demo data (dev only)
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/sales-engine/logger"
)

// RouterOptions configures cross-cutting router behavior.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows the local dev frontends.
	AllowedOrigins []string
	// EnableSeed mounts POST /api/seed.
	EnableSeed bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.SubmitSale)
			r.Get("/pending", h.ListPendingSales)
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/decision", h.DecideSale)
		})

		r.Route("/sales-persons/{id}", func(r chi.Router) {
			r.Get("/stats", h.GetSalesStats)
			r.Get("/recent-sales", h.GetRecentSales)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.ApplyLoan)
			r.Get("/pending", h.ListPendingLoans)
			r.Get("/interest-rate", h.GetInterestRate)
			r.Get("/{id}", h.GetLoan)
			r.Post("/{id}/decision", h.DecideLoan)
			r.Get("/{id}/payments", h.ListLoanPayments)
			r.Post("/{id}/payments", h.PayLoan)
		})

		r.Get("/borrowers/{id}/loan-stats", h.GetLoanStats)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/stats", h.GetProductStats)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}/team", h.GetTeam)
		})

		r.Route("/funds", func(r chi.Router) {
			r.Get("/", h.ListFunds)
			r.Put("/{type}", h.SetFund)
			r.Post("/{type}/adjustments", h.AdjustFund)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Put("/{key}", h.UpdateSetting)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/overview", h.GetOverview)
			r.Get("/sales-performance", h.GetSalesPerformance)
		})

		if opts.EnableSeed {
			r.Post("/seed", h.Seed)
		}
	})

	return r
}
