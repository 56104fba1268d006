package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Endpoints lists the routes served by NewRouter, for the startup banner
var Endpoints = []string{
	"GET    /health",
	"GET    /metrics",
	"GET    /ws",
	"GET    /api/v1/dataset",
	"GET    /api/v1/selection",
	"PUT    /api/v1/selection",
	"DELETE /api/v1/selection",
	"GET    /api/v1/charts",
	"GET    /api/v1/charts/{chart}",
	"GET    /api/v1/charts/{chart}/svg",
	"GET    /api/v1/charts/{chart}/tooltip?key=",
	"POST   /api/v1/charts/{chart}/brush",
	"POST   /api/v1/charts/pie/select",
	"POST   /api/v1/charts/pie/zoom",
	"GET    /api/v1/hub",
}

// NewRouter wires the handler into a chi router with the standard middleware
func NewRouter(h *Handler, corsOrigins []string, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Websocket connections are long-lived and sit outside the request timeout
	r.Get("/ws", h.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))

		r.Get("/health", h.HealthCheck)
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/dataset", h.GetDataset)
			r.Get("/hub", h.GetHubMetrics)

			// Shared selection
			r.Get("/selection", h.GetSelection)
			r.Put("/selection", h.PutSelection)
			r.Delete("/selection", h.DeleteSelection)

			// Charts
			r.Get("/charts", h.GetCharts)
			r.Get("/charts/{chart}", h.GetChart)
			r.Get("/charts/{chart}/svg", h.GetChartSVG)
			r.Get("/charts/{chart}/tooltip", h.GetTooltip)
			r.Post("/charts/{chart}/brush", h.Brush)
			r.Post("/charts/{chart}/select", h.Select)
			r.Post("/charts/{chart}/zoom", h.Zoom)
		})
	})

	return r
}
