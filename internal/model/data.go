package model

import "time"

// Statistics summarizes a transformed batch.
type Statistics struct {
	RecordCount         int            `json:"record_count"`
	AverageAgeUnits     float64        `json:"average_age_units"`
	AverageIncomeTarget float64        `json:"average_income_target"`
	GenderDistribution  map[string]int `json:"gender_distribution"`
	IllnessDistribution map[string]int `json:"illness_distribution"`
}

// ValidationReport is returned by the transformer next to the records.
type ValidationReport struct {
	IsValid    bool       `json:"is_valid"`
	Errors     []string   `json:"errors"`
	Warnings   []string   `json:"warnings"`
	Statistics Statistics `json:"statistics"`

	InputRecords    int       `json:"input_records"`
	OutputRecords   int       `json:"output_records"`
	DroppedRecords  int       `json:"dropped_records"`
	RateUsed        float64   `json:"rate_used"`
	ProcessedAt     time.Time `json:"processed_at"`
	Transformations []string  `json:"transformations_applied"`
}

// Artifact format keys used in LoadResult.FilesCreated.
const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatSQL     = "sql"
	FormatSummary = "summary"
)

// ArtifactFormats lists every file sink in write order.
var ArtifactFormats = []string{FormatJSON, FormatParquet, FormatCSV, FormatSQL, FormatSummary}

// LoadResult aggregates the outcome of every sink for one load.
// A format missing from FilesCreated means that sink failed.
type LoadResult struct {
	FilesCreated    map[string]string `json:"files_created"`
	RecordsInserted int               `json:"database_records_inserted"`
	RecordsSkipped  int               `json:"database_records_skipped"`
	DatabaseUsed    bool              `json:"database_used"`
	CloudURL        string            `json:"cloud_url,omitempty"`
	CloudBackup     bool              `json:"cloud_backup"`
	Errors          []string          `json:"errors"`
}

// File returns the artifact path for a format, or "" when absent.
func (r *LoadResult) File(format string) string {
	if r == nil || r.FilesCreated == nil {
		return ""
	}
	return r.FilesCreated[format]
}
