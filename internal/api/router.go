// Package api mounts the pipeline endpoints on a router.
package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-person-etl/docs"
	"go-person-etl/internal/api/handler"
	"go-person-etl/internal/app"
	"go-person-etl/pkg/router"
)

// Version is reported by /health.
var Version = "1.0.0"

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/health", h.Health)

	r.POST("/api/run-etl", h.RunETL)
	r.POST("/api/process-file", h.ProcessFile)
	r.POST("/api/import-to-database", h.ImportToDatabase)

	r.GET("/api/latest-data", h.LatestData)
	r.GET("/api/database/records", h.DatabaseRecords)
	r.GET("/api/stats", h.Stats)
	r.GET("/api/executions", h.Executions)
	r.GET("/api/executions/*", h.Execution)
	r.GET("/api/download/*", h.Download)
	r.GET("/api/trm", h.TRM)
	r.GET("/api/cloud/files", h.CloudFiles)

	r.Handle("/swagger/*", httpSwagger.WrapHandler)
}

// NewRouter builds the full HTTP surface of a wired App.
func NewRouter(a *app.App) http.Handler {
	deps := handler.Deps{
		Runner:         a.Orchestrator,
		Rates:          a.Rates,
		OutputDir:      a.Orchestrator.Loader().OutputDir(),
		BackupDir:      a.Config.Output.BackupDir,
		UploadDir:      a.Config.Input.UploadDir,
		MaxUploadBytes: a.Config.Server.MaxUploadMB << 20,
		Version:        Version,
		Logger:         a.Logger,
	}
	// leave the interfaces nil rather than wrapping nil pointers
	if a.Store != nil {
		deps.Database = a.Store
	}
	if a.Objects != nil {
		deps.Objects = a.Objects
	}

	r := router.New(a.Logger)
	RegisterRoutes(r, handler.New(deps))
	if a.Metrics != nil {
		r.Handle("/metrics", a.Metrics.Handler())
	}
	return r
}
