/**
 * @description
 * This file sets up the HTTP router for the cup-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication and role enforcement.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CupRoutes creates and returns a new router for the cup service.
func CupRoutes(h *CupHandlers, jwksURL, cronSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Customer endpoints require a valid JWT.
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/borrow", h.BorrowHandler)
		r.Post("/return", h.ReturnHandler)
		r.Get("/transactions/{transactionID}", h.TransactionHandler)
		r.Post("/trips", h.TripHandler)
		r.Post("/vouchers/apply", h.ApplyVoucherHandler)
		r.Get("/impact", h.ImpactHandler)
	})

	// Admin endpoints additionally require the admin role claim.
	r.Route("/admin", func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))
		r.Use(RequireRole("admin"))

		r.Post("/settlements", h.SettlementActionHandler)
		r.Post("/cups", h.ImportCupsHandler)
		r.Post("/cups/report", h.ReportCupHandler)
	})

	// Sweep endpoints are called by the scheduler with a shared secret.
	r.Route("/cron", func(r chi.Router) {
		r.Use(CronSecretMiddleware(cronSecret))

		r.Post("/check-overdue", h.CheckOverdueHandler)
		r.Post("/due-reminders", h.DueRemindersHandler)
	})

	return r
}
