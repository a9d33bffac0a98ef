/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontends

ROUTE GROUPS:
  /api/paychecks/*      Calculation, finalization, corrections
  /api/employees/*      Paycheck history, tax profiles
  /api/runs             Batch payroll runs
  /api/rulesets         Versioned rule-set administration
  /api/allowances       Versioned allowance administration
  /api/components       Pay-component configuration
  /api/audit            Audit trail queries
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Paycheck routes
		r.Route("/paychecks", func(r chi.Router) {
			r.Post("/calculate", h.CalculatePaycheck)
			r.Post("/", h.FinalizePaycheck)
			r.Get("/{id}", h.GetPaycheck)
			r.Post("/{id}/void", h.VoidPaycheck)
			r.Post("/{id}/recalculate", h.RecalculatePaycheck)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/paychecks", h.ListPaychecks)
			r.Get("/{id}/profile", h.GetProfile)
			r.Put("/{id}/profile", h.SaveProfile)
		})

		// Batch runs
		r.Post("/runs", h.RunPayroll)

		// Configuration routes (versioned, insert-only)
		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", h.ListRuleSets)
			r.Post("/", h.CreateRuleSet)
		})
		r.Post("/allowances", h.CreateAllowance)
		r.Route("/components", func(r chi.Router) {
			r.Get("/", h.ListComponents)
			r.Post("/", h.CreateComponents)
		})

		// Audit trail
		r.Get("/audit", h.QueryAudit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Minimal API index for anyone hitting the root in a browser.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Payroll Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Payroll Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><code>POST /api/paychecks/calculate</code> - Dry-run paycheck calculation</li>
<li><code>POST /api/paychecks</code> - Calculate and finalize</li>
<li><code>POST /api/runs</code> - Batch payroll run</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
