package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-person-etl/internal/model"
	"go-person-etl/internal/pipeline"
)

// RunETLRequest is the body of POST /api/run-etl.
type RunETLRequest struct {
	InputFile        string   `json:"input_file"`
	UseSampleData    bool     `json:"use_sample_data"`
	InsertToDatabase bool     `json:"insert_to_database"`
	TRM              *float64 `json:"trm,omitempty"`
}

// RunETL runs the pipeline on a server-side file or the sample dataset
// @Summary Run the pipeline
// @Description Run extract, transform and load on input_file or the embedded sample dataset
// @Tags pipeline
// @Accept json
// @Produce json
// @Param request body RunETLRequest true "Run options"
// @Success 200 {object} model.ExecutionReport "Execution report"
// @Failure 400 {object} model.ExecutionReport "Invalid input"
// @Failure 500 {object} model.ExecutionReport "Run failed"
// @Router /api/run-etl [post]
func (h *Handler) RunETL(w http.ResponseWriter, r *http.Request) {
	var body RunETLRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			badRequest(w, "invalid JSON payload")
			return
		}
	}

	req := pipeline.RunRequest{
		UseSample:        body.UseSampleData,
		InsertToDatabase: body.InsertToDatabase,
		Rate:             body.TRM,
	}
	if !body.UseSampleData {
		req.InputFile = h.resolveInput(body.InputFile)
	}
	h.run(w, r, req)
}

// resolveInput looks a relative name up in the upload directory when it
// does not exist as given.
func (h *Handler) resolveInput(name string) string {
	if name == "" || filepath.IsAbs(name) || h.uploadDir == "" {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	candidate := filepath.Join(h.uploadDir, filepath.Base(name))
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return name
}

// ProcessFile runs the pipeline on an uploaded file
// @Summary Upload and process a file
// @Description Upload a CSV, XLSX or JSON dataset and run the pipeline on it
// @Tags pipeline
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Dataset"
// @Param insert_to_database formData bool false "Insert records into the database"
// @Param trm formData number false "Exchange rate override"
// @Success 200 {object} model.ExecutionReport "Execution report"
// @Failure 400 {object} ErrorResponse "Invalid upload"
// @Router /api/process-file [post]
func (h *Handler) ProcessFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		badRequest(w, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	format, err := pipeline.FormatOf(header.Filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req := pipeline.RunRequest{}
	if v := r.FormValue("insert_to_database"); v != "" {
		insert, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "insert_to_database must be a boolean")
			return
		}
		req.InsertToDatabase = insert
	}
	if v := r.FormValue("trm"); v != "" {
		trm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			badRequest(w, "trm must be a number")
			return
		}
		req.Rate = &trm
	}

	if h.uploadDir == "" {
		req.Reader, req.Format, req.SourceName = file, format, header.Filename
		h.run(w, r, req)
		return
	}

	saved, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("save upload: %w", err))
		return
	}
	req.InputFile = saved
	h.run(w, r, req)
}

// saveUpload keeps a copy of the uploaded file in the upload directory.
func (h *Handler) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	base := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	path := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), base))

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

// detach keeps request values but drops cancellation: a client that
// disconnects does not abort a run.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, req pipeline.RunRequest) {
	report, err := h.runner.Run(detach(r), req)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.log.Error("pipeline run failed", zap.String("run_id", report.RunID), zap.Error(err))
		}
		writeJSON(w, code, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ImportResponse is the body of POST /api/import-to-database.
type ImportResponse struct {
	Success         bool   `json:"success"`
	File            string `json:"file"`
	Records         int    `json:"records"`
	RecordsInserted int    `json:"records_inserted"`
	RecordsSkipped  int    `json:"records_skipped"`
}

// ImportToDatabase inserts the latest JSON artifact into the database
// @Summary Import the latest artifact
// @Description Insert the records of the latest JSON artifact, skipping duplicates
// @Tags database
// @Produce json
// @Success 200 {object} ImportResponse "Import result"
// @Failure 404 {object} ErrorResponse "No artifact"
// @Failure 503 {object} ErrorResponse "Database disabled"
// @Router /api/import-to-database [post]
func (h *Handler) ImportToDatabase(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, r, errDatabaseDisabled)
		return
	}
	path, records, err := h.latestRecords()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	inserted, skipped, err := h.runner.ImportRecords(detach(r), records)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Success:         true,
		File:            path,
		Records:         len(records),
		RecordsInserted: inserted,
		RecordsSkipped:  skipped,
	})
}

func (h *Handler) latestRecords() (string, []model.PersonRecord, error) {
	path, err := h.artifacts.Latest(pipeline.DataPrefix, "json")
	if err != nil {
		return "", nil, err
	}
	records, err := pipeline.ReadJSONArtifact(path)
	if err != nil {
		return "", nil, err
	}
	return path, records, nil
}
