package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go-person-etl/internal/model"
	"go-person-etl/internal/pipeline"
	"go-person-etl/internal/store"
)

// LatestDataResponse is the body of GET /api/latest-data.
type LatestDataResponse struct {
	Success     bool                 `json:"success"`
	File        string               `json:"file"`
	Size        int64                `json:"size_bytes"`
	DownloadURL string               `json:"download_url"`
	Count       int                  `json:"count"`
	Data        []model.PersonRecord `json:"data"`
}

// LatestData returns the records of the latest JSON artifact
// @Summary Latest transformed data
// @Tags artifacts
// @Produce json
// @Success 200 {object} LatestDataResponse
// @Failure 404 {object} ErrorResponse "No artifact"
// @Router /api/latest-data [get]
func (h *Handler) LatestData(w http.ResponseWriter, r *http.Request) {
	path, records, err := h.latestRecords()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	size, _ := h.artifacts.GetFileSize(path)
	writeJSON(w, http.StatusOK, LatestDataResponse{
		Success:     true,
		File:        filepath.Base(path),
		Size:        size,
		DownloadURL: h.artifacts.GetDownloadURL(model.FormatJSON),
		Count:       len(records),
		Data:        records,
	})
}

// queryLimit parses ?limit=, returning def when absent.
func queryLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

// DatabaseRecords lists stored records
// @Summary Stored records
// @Tags database
// @Produce json
// @Param limit query int false "Maximum rows (default 1000)"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} ErrorResponse "Database disabled"
// @Router /api/database/records [get]
func (h *Handler) DatabaseRecords(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, r, errDatabaseDisabled)
		return
	}
	limit, err := queryLimit(r, store.DefaultRecordLimit)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	records, err := h.db.ListRecords(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

// Stats returns database statistics
// @Summary Database statistics
// @Tags database
// @Produce json
// @Success 200 {object} model.DatabaseStats
// @Failure 503 {object} ErrorResponse "Database disabled"
// @Router /api/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, r, errDatabaseDisabled)
		return
	}
	stats, err := h.db.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// Executions lists execution history
// @Summary Execution history
// @Tags executions
// @Produce json
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /api/executions [get]
func (h *Handler) Executions(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, r, errDatabaseDisabled)
		return
	}
	limit, err := queryLimit(r, 50)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	execs, err := h.db.ListExecutions(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      len(execs),
		"executions": execs,
	})
}

// Execution returns one execution with its log lines
// @Summary Execution detail
// @Tags executions
// @Produce json
// @Param id path int true "Execution ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /api/executions/{id} [get]
func (h *Handler) Execution(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, r, errDatabaseDisabled)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/executions/")
	id, err := strconv.ParseInt(strings.Trim(raw, "/"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid execution id")
		return
	}
	exec, logs, err := h.db.GetExecution(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"execution": exec,
		"logs":      logs,
	})
}

// Download serves the latest artifact of a format
// @Summary Download an artifact
// @Tags artifacts
// @Produce octet-stream
// @Param format path string true "json, parquet, csv, sql or summary"
// @Success 200 {file} file "Artifact"
// @Failure 400 {object} ErrorResponse "Unknown format"
// @Failure 404 {object} ErrorResponse "No artifact"
// @Router /api/download/{format} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	format := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/download/"), "/")
	prefix, ext, ok := pipeline.ArtifactPrefix(format)
	if !ok {
		badRequest(w, fmt.Sprintf("unknown format %q", format))
		return
	}
	path, err := h.artifacts.Latest(prefix, ext)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := filepath.Base(path)
	contentType := "application/octet-stream"
	switch h.artifacts.GetFileType(name) {
	case "json":
		contentType = "application/json"
	case "csv":
		contentType = "text/csv"
	case "sql":
		contentType = "application/sql"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}
