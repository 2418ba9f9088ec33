package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/accounts", h.HandleGetAccounts)
	r.Get("/security-tickers", h.HandleGetSecurityTickers)
	r.Post("/card-data", h.HandleCardData)
	r.Post("/graph-data", h.HandleGraphData)
	r.Post("/top-down-bottom-up", h.HandleTopDownBottomUp)

	r.Route("/snapshot", func(r chi.Router) {
		r.Get("/", h.HandleGetSnapshot)
		r.Post("/reload", h.HandleReloadSnapshot)
	})
}
