// Package handler implements the HTTP endpoints of the pipeline service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"go.uber.org/zap"

	"go-person-etl/internal/logging"
	"go-person-etl/internal/model"
	"go-person-etl/internal/pipeline"
	"go-person-etl/internal/rate"
	"go-person-etl/internal/store"
	"go-person-etl/pkg/utils"
)

// Runner runs the pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*model.ExecutionReport, error)
	ImportRecords(ctx context.Context, records []model.PersonRecord) (inserted, skipped int, err error)
}

// Database is the read side of the relational store.
type Database interface {
	Ping(ctx context.Context) error
	ListRecords(ctx context.Context, limit int) ([]model.StoredRecord, error)
	Stats(ctx context.Context) (*model.DatabaseStats, error)
	ListExecutions(ctx context.Context, limit int) ([]model.Execution, error)
	GetExecution(ctx context.Context, id int64) (*model.Execution, []model.ExecutionLog, error)
}

// RateQuoter resolves the current exchange rate.
type RateQuoter interface {
	Lookup(ctx context.Context) rate.Quote
}

// ObjectLister lists uploaded objects.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Deps are the collaborators of a Handler. Database and Objects may be nil.
type Deps struct {
	Runner         Runner
	Database       Database
	Rates          RateQuoter
	Objects        ObjectLister
	OutputDir      string
	BackupDir      string
	UploadDir      string
	MaxUploadBytes int64
	Version        string
	Logger         *zap.Logger
}

// Handler serves the pipeline API.
type Handler struct {
	runner    Runner
	db        Database
	rates     RateQuoter
	objects   ObjectLister
	artifacts *utils.OutputManager
	backupDir string
	uploadDir string
	maxUpload int64
	version   string
	log       *zap.Logger
}

// New builds a Handler.
func New(d Deps) *Handler {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Handler{
		runner:    d.Runner,
		db:        d.Database,
		rates:     d.Rates,
		objects:   d.Objects,
		artifacts: utils.NewOutputManager(d.OutputDir),
		backupDir: d.BackupDir,
		uploadDir: d.UploadDir,
		maxUpload: maxUpload,
		version:   d.Version,
		log:       logging.Component(d.Logger, "api"),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var errDatabaseDisabled = errors.New("database is not enabled")

// statusFor maps a pipeline or store error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoData),
		errors.Is(err, pipeline.ErrMissingColumns),
		errors.Is(err, pipeline.ErrUnsupportedFormat),
		errors.Is(err, pipeline.ErrInvalidRate),
		errors.Is(err, pipeline.ErrNoInput),
		errors.Is(err, os.ErrNotExist):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, utils.ErrNoArtifact):
		return http.StatusNotFound
	case errors.Is(err, errDatabaseDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, ErrorResponse{Success: false, Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Error: msg})
}
