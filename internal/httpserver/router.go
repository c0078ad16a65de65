// Package httpserver wires together the chi router for every handler
// package this service exposes.
package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webhookrelay/delivery/internal/adminauth"
	"github.com/webhookrelay/delivery/internal/ingestion"
	"github.com/webhookrelay/delivery/internal/subscriptions"
)

type Dependencies struct {
	Ingestion     *ingestion.Handler
	Subscriptions *subscriptions.Handler
	Admin         *adminauth.Handler
	AuthMiddleware *adminauth.Middleware
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Ingestion is reachable by any producer holding a subscription ID;
	// it is not behind admin auth (§4.3 has no auth requirement of its own).
	r.Post("/webhooks/ingest/{subscription_id}", deps.Ingestion.Ingest)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/register", deps.Admin.Register)
		r.Post("/admin/login", deps.Admin.Login)

		r.Get("/webhooks/{id}/status", deps.Subscriptions.Status)
		r.Get("/webhooks/subscription/{id}", deps.Subscriptions.ListBySubscription)
		r.Get("/stats/subscription/{id}", deps.Subscriptions.Stats)
		r.Get("/subscriptions/{id}", deps.Subscriptions.Get)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/subscriptions", deps.Subscriptions.Create)
			r.Get("/subscriptions", deps.Subscriptions.List)
			r.Put("/subscriptions/{id}", deps.Subscriptions.Update)
			r.Delete("/subscriptions/{id}", deps.Subscriptions.Delete)
		})
	})

	return r
}
