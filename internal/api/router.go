package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"market-pipeline/internal/api/handler"
	"market-pipeline/pkg/router"
)

// RegisterRoutes mounts the run API, the health probe, the metrics
// endpoint and the swagger UI. metrics may be nil.
func RegisterRoutes(r *router.Router, h *handler.Handler, metrics http.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/{id}", h.GetRun)
	r.GET("/api/v1/runs/{id}/results", h.GetRunResults)
	r.GET("/api/v1/runs/{id}/errors", h.GetRunErrors)
	r.GET("/api/v1/datasets/{name}/analysis", h.GetDatasetAnalysis)

	r.GET("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.GET("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
