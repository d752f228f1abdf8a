// Package http wires the local REST and WebSocket surface. The daemon
// binds to localhost only; the API serves the desktop UI, not remote
// clients.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"indistocks/internal/middleware"
	"indistocks/internal/websocket"
)

// Deps carries the services the handlers dispatch to.
type Deps struct {
	Market    *MarketHandler
	Ingest    *IngestHandler
	Hub       *websocket.Hub
	Registry  *prometheus.Registry
	Logger    *slog.Logger
	RateRPS   float64
	RateBurst int
}

// NewRouter assembles the full route tree with the standard middleware
// stack.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	rps, burst := deps.RateRPS, deps.RateBurst
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 50
	}
	r.Use(middleware.RateLimit(rps, burst))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/ingest", deps.Ingest.Routes())
		r.Get("/downloads", deps.Ingest.ListDownloads)
		r.Mount("/", deps.Market.Routes())
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(deps.Hub, w, req)
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})

	return r
}
