package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Post("/ingest-snapshots", app.IngestSnapshotsHandler)
	r.Post("/ingest-predictions", app.IngestPredictionsHandler)

	r.Route("/emotions/{videoID}", func(r chi.Router) {
		r.Get("/", app.GetEmotionsHandler)
		r.Get("/live", app.LiveEmotionsHandler)
		r.Post("/analyze", app.AnalyzeHandler)
	})

	return r
}
