package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/devicehealth/internal/panel"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RealIP,
		withRequestID,
		s.accessLog,
		s.recoverPanics,
		s.corsPolicy(),
		middleware.RequestSize(maxRequestBodySize),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Handle("/dashboard", http.RedirectHandler("/dashboard/", http.StatusMovedPermanently))
	r.Handle("/dashboard/*", http.StripPrefix("/dashboard", panel.Handler(s.cfg.PanelDir)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)
		r.Get("/summary", s.handleDeviceSummary)
		r.Get("/export.csv", s.handleExportCSV)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleIngestReport)
			r.Get("/{id}", s.handleGetDevice)
		})
	})

	return r
}
