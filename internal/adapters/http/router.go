package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/analysis-service/internal/application"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/analyses", handler.submitAnalysisJob)
			r.Get("/analyses", handler.listRecentAnalyses)
			r.Get("/analyses/{video_id}", handler.getAnalysisByVideo)
			r.Get("/analyses/{video_id}/top-moments", handler.getTopMoments)
			r.Get("/jobs/{job_id}", handler.getJobStatus)
		})
	})
	return r
}
