package model

import "time"

// Status is the persisted outcome of an execution.
type Status string

const (
	StatusInProgress            Status = "IN_PROGRESS"
	StatusCompleted             Status = "COMPLETED"
	StatusCompletedWithWarnings Status = "COMPLETED_WITH_WARNINGS"
	StatusError                 Status = "ERROR"
)

// Phase is a state of the orchestrator's run state machine.
type Phase string

const (
	PhaseStarted      Phase = "STARTED"
	PhaseExtracting   Phase = "EXTRACTING"
	PhaseTransforming Phase = "TRANSFORMING"
	PhaseLoading      Phase = "LOADING"
	PhaseFinalized    Phase = "FINALIZED"
)

// Execution is one row of execution history.
type Execution struct {
	ID               int64      `json:"id"`
	RunID            string     `json:"run_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	RateUsed         float64    `json:"rate_used"`
	JSONFile         string     `json:"json_file,omitempty"`
	ParquetFile      string     `json:"parquet_file,omitempty"`
	SourceFile       string     `json:"source_file,omitempty"`
	Status           Status     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds"`
}

// ExecutionLog is a log line attached to an execution.
type ExecutionLog struct {
	ID          int64          `json:"id"`
	ExecutionID int64          `json:"execution_id"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ExecutionReport is what a pipeline run returns to its caller.
type ExecutionReport struct {
	Success          bool              `json:"success"`
	RunID            string            `json:"run_id"`
	ExecutionID      int64             `json:"execution_id,omitempty"`
	Status           Status            `json:"status"`
	SourceFile       string            `json:"source_file,omitempty"`
	RecordsProcessed int               `json:"records_processed"`
	RecordsDropped   int               `json:"records_dropped"`
	DurationSeconds  float64           `json:"duration_seconds"`
	TRMUsed          float64           `json:"trm_used"`
	FilesCreated     map[string]string `json:"files_created"`
	DatabaseInserted bool              `json:"database_inserted"`
	RecordsInserted  int               `json:"records_inserted"`
	RecordsSkipped   int               `json:"records_skipped"`
	CloudURL         string            `json:"cloud_url,omitempty"`
	Errors           []string          `json:"errors"`
	ErrorDetails     []ErrorDetail     `json:"error_details,omitempty"`
	Validation       *ValidationReport `json:"validation,omitempty"`
	Phases           map[Phase]float64 `json:"phase_seconds,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// DatabaseStats summarizes the canonical record table.
type DatabaseStats struct {
	TotalRecords        int            `json:"total_records"`
	AverageAgeYears     float64        `json:"average_age_years"`
	AverageAgeUnits     float64        `json:"average_age_units"`
	AverageIncomeSource float64        `json:"average_income_source"`
	AverageIncomeTarget float64        `json:"average_income_target"`
	GenderDistribution  map[string]int `json:"gender_distribution"`
	IllnessDistribution map[string]int `json:"illness_distribution"`
	LastProcessedAt     *time.Time     `json:"last_processed_at,omitempty"`
	TotalExecutions     int            `json:"total_executions"`
}
