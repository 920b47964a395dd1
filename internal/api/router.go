package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/handlers"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)

	authHandler := handlers.NewAuthHandler(s.store, s.logger)
	collectionHandler := handlers.NewCollectionHandler(s.store, s.logger)
	catalogHandler := handlers.NewCatalogHandler(s.store)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf-token", authHandler.CSRFToken)
			r.Get("/me", authHandler.Me)
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.With(requireCSRF).Post("/logout", authHandler.Logout)
		})

		r.Route("/collection", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireCSRF)
			r.Get("/", collectionHandler.List)
			r.Post("/", collectionHandler.Add)
			r.Get("/stats", collectionHandler.Stats)
			r.Put("/{itemID}", collectionHandler.Update)
			r.Delete("/{itemID}", collectionHandler.Remove)
		})

		r.Route("/pokemon/cards", func(r chi.Router) {
			r.Get("/search", catalogHandler.Search)
			r.Get("/{cardID}", catalogHandler.Card)
		})
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "healthy"})
}
