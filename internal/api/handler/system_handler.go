package handler

import (
	"net/http"
	"time"

	"go-person-etl/internal/rate"
	"go-person-etl/internal/storage"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Storage  string    `json:"storage"`
	Time     time.Time `json:"time"`
	Version  string    `json:"version"`
}

// Health reports service and backend status
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Database: "disabled",
		Storage:  "disabled",
		Time:     time.Now().UTC(),
		Version:  h.version,
	}
	if h.db != nil {
		resp.Database = "connected"
		if err := h.db.Ping(r.Context()); err != nil {
			resp.Database = "error: " + err.Error()
			resp.Status = "degraded"
		}
	}
	if h.objects != nil {
		resp.Storage = "enabled"
	}
	writeJSON(w, http.StatusOK, resp)
}

// TRMResponse is the body of GET /api/trm.
type TRMResponse struct {
	Success bool       `json:"success"`
	TRM     rate.Quote `json:"trm"`
}

// TRM returns the current exchange rate
// @Summary Current exchange rate
// @Description Resolves the COP/USD rate from the cache, the remote source or the fallback
// @Tags rate
// @Produce json
// @Success 200 {object} TRMResponse
// @Router /api/trm [get]
func (h *Handler) TRM(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TRMResponse{Success: true, TRM: h.rates.Lookup(r.Context())})
}

// CloudFilesResponse is the body of GET /api/cloud/files.
type CloudFilesResponse struct {
	Success        bool     `json:"success"`
	StorageEnabled bool     `json:"storage_enabled"`
	Count          int      `json:"count"`
	Files          []string `json:"files"`
	LocalBackups   []string `json:"local_backups"`
}

// CloudFiles lists objects in the configured bucket and uploads that fell
// back to the local backup directory
// @Summary Object storage listing
// @Tags storage
// @Produce json
// @Param prefix query string false "Key prefix"
// @Success 200 {object} CloudFilesResponse
// @Router /api/cloud/files [get]
func (h *Handler) CloudFiles(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	resp := CloudFilesResponse{Success: true, Files: []string{}, LocalBackups: []string{}}

	if h.objects != nil {
		resp.StorageEnabled = true
		files, err := h.objects.List(r.Context(), prefix)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if files != nil {
			resp.Files = files
		}
	}
	if h.backupDir != "" {
		backups, err := storage.ListBackups(h.backupDir, prefix)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if backups != nil {
			resp.LocalBackups = backups
		}
	}
	resp.Count = len(resp.Files)
	writeJSON(w, http.StatusOK, resp)
}
