package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/medrag/web"
)

// Router wires every route behind the shared middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(CORS(h.origins))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Post("/query", h.handleQuery)

	r.Get("/", h.handlePage)
	r.Post("/", h.handlePageAsk)
	r.Post("/clear", h.handlePageClear)
	r.Get("/export", h.handlePageExport)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/quick-queries", h.handleQuickQueries)
		r.Get("/data", h.handleData)

		r.Post("/sessions", h.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleClearSession)
			r.Post("/messages", h.handleAsk)
			r.Get("/export", h.handleExportSession)
		})

		r.Get("/logs", h.handleLogs)
		r.Get("/logs/{name}", h.handleLogDownload)
	})

	r.Handle("/static/*", http.StripPrefix("/static/", web.StaticHandler()))
	r.Get("/images/{name}", h.handleImage)

	return r
}
