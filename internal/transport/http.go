package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/merchantops/fulfillment-desk/internal/handler"
)

// NewRouter wires the dashboard API.
func NewRouter(h *handler.DashboardHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/allocation", h.Allocation)
		r.Get("/lowstock", h.LowStock)
		r.Post("/lines/{id}/accept", h.AcceptLine)
		r.Post("/stock/sync", h.SyncStock)
	})

	return r
}
