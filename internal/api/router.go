/**
 * @description
 * This file sets up the HTTP router for the portal service. It defines the
 * public auth endpoints, the authenticated client portal routes, and the
 * admin routes, and applies the shared middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser frontends.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
)

// PortalRoutes creates and returns the router for the portal service.
func PortalRoutes(h *PortalHandlers, idp *identity.Provider, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging and panic recovery. The request
	// timeout is applied per route group so the live stream endpoint can
	// hold its connection open.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public authentication endpoints.
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleClientLogin)
		r.Post("/admin/login", h.HandleAdminLogin)
	})

	// Client portal routes require a client session.
	r.Route("/portal", func(r chi.Router) {
		r.Use(AuthMiddleware(idp))
		r.Use(RequireRole(domain.RoleClient))

		// Long-lived stream connection, deliberately not under the timeout.
		r.Get("/me/stream", h.HandleAccountStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/me", h.HandleMe)
			r.Get("/me/transactions", h.HandleMyTransactions)
			r.Post("/deposits", h.HandleCreateDeposit)
			r.Post("/withdrawals", h.HandleCreateWithdrawal)
		})
	})

	// Admin routes require a staff session.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(idp))
		r.Use(RequireRole(domain.RoleAdmin))

		r.Get("/stats", h.HandleAdminStats)
		r.Get("/transactions/pending", h.HandlePendingTransactions)
		r.Post("/transactions/{id}/approve", h.HandleApproveTransaction)
		r.Post("/transactions/{id}/reject", h.HandleRejectTransaction)
	})

	return r
}
