package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"go-person-etl/internal/logging"
	"go-person-etl/internal/metrics"
	"go-person-etl/internal/model"
	"go-person-etl/internal/storage"
	"go-person-etl/pkg/utils"
)

// Artifact name prefixes.
const (
	DataPrefix    = "transformed_data"
	SQLPrefix     = "insert_script"
	SummaryPrefix = "data_summary"
	CloudPrefix   = "person_data"
)

// RecordsTable is the relational table holding canonical records.
const RecordsTable = "person_records"

// ArtifactPrefix returns the file prefix and extension for a format.
func ArtifactPrefix(format string) (prefix, ext string, ok bool) {
	switch format {
	case model.FormatJSON:
		return DataPrefix, "json", true
	case model.FormatParquet:
		return DataPrefix, "parquet", true
	case model.FormatCSV:
		return DataPrefix, "csv", true
	case model.FormatSQL:
		return SQLPrefix, "sql", true
	case model.FormatSummary:
		return SummaryPrefix, "json", true
	default:
		return "", "", false
	}
}

// LoadOptions selects the optional sinks of one load.
type LoadOptions struct {
	RunID string
	DB    RecordSink
	Cloud storage.ObjectStore
}

// Loader writes canonical records to every sink. A failing sink never
// blocks the others; failures are collected in LoadResult.Errors.
type Loader struct {
	out       *utils.OutputManager
	backupDir string
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewLoader creates a loader writing artifacts under outputDir. Failed
// cloud uploads are copied into backupDir.
func NewLoader(outputDir, backupDir string, logger *zap.Logger, m *metrics.Metrics) *Loader {
	return &Loader{
		out:       utils.NewOutputManager(outputDir),
		backupDir: backupDir,
		log:       logging.Component(logger, "loader"),
		metrics:   m,
		now:       time.Now,
	}
}

// OutputDir is where artifacts are written.
func (l *Loader) OutputDir() string { return l.out.BaseOutputDir }

// Load runs every file sink, then the database and cloud sinks when given.
func (l *Loader) Load(ctx context.Context, records []model.PersonRecord, opts LoadOptions) *model.LoadResult {
	log := logging.FromContext(ctx, l.log)
	result := &model.LoadResult{
		FilesCreated: map[string]string{},
		Errors:       []string{},
	}

	at := l.now()
	tag := runTag(opts.RunID)

	fail := func(sink string, err error) {
		log.Warn("sink failed", zap.String("sink", sink), zap.Error(err))
		l.metrics.SinkFailed(sink)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sink, err))
	}

	if err := l.out.EnsureOutputDirExists(); err != nil {
		log.Warn("output directory unavailable", zap.String("dir", l.out.BaseOutputDir), zap.Error(err))
	}

	sinks := []struct {
		format string
		write  func(io.Writer) error
	}{
		{model.FormatJSON, func(w io.Writer) error { return writeJSON(w, records) }},
		{model.FormatParquet, func(w io.Writer) error { return writeParquet(w, records) }},
		{model.FormatCSV, func(w io.Writer) error { return writeCSV(w, records) }},
		{model.FormatSQL, func(w io.Writer) error { return writeSQLScript(w, records, RecordsTable, at) }},
		{model.FormatSummary, func(w io.Writer) error { return writeSummary(w, records, at) }},
	}
	for _, s := range sinks {
		prefix, ext, _ := ArtifactPrefix(s.format)
		path := l.out.ArtifactPath(prefix, tag, ext, at)
		if err := writeFileAtomic(path, s.write); err != nil {
			fail(s.format, err)
			continue
		}
		result.FilesCreated[s.format] = path
		log.Debug("artifact written", zap.String("format", s.format), zap.String("path", path))
	}

	if opts.DB != nil {
		result.DatabaseUsed = true
		inserted, skipped, err := loadDatabase(ctx, opts.DB, records, log)
		if err != nil {
			fail("database", err)
		} else {
			result.RecordsInserted = inserted
			result.RecordsSkipped = skipped
			l.metrics.ObserveInsert(inserted, skipped)
		}
	}

	if opts.Cloud != nil {
		if jsonPath := result.File(model.FormatJSON); jsonPath == "" {
			fail("cloud", fmt.Errorf("no JSON artifact to upload"))
		} else {
			remote := filepath.Base(l.out.ArtifactPath(CloudPrefix, tag, "json", at))
			url, backup, err := l.uploadOrBackup(ctx, opts.Cloud, jsonPath, remote, log)
			if err != nil {
				fail("cloud", err)
			} else {
				result.CloudURL = url
				result.CloudBackup = backup
			}
		}
	}

	log.Info("load finished",
		zap.Int("files", len(result.FilesCreated)),
		zap.Int("inserted", result.RecordsInserted),
		zap.Int("skipped", result.RecordsSkipped),
		zap.String("cloud_url", result.CloudURL),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// uploadOrBackup uploads path; on failure the file is copied into the
// backup directory and a local:// URL is returned instead.
func (l *Loader) uploadOrBackup(ctx context.Context, store storage.ObjectStore, path, remote string, log *zap.Logger) (string, bool, error) {
	url, err := store.Upload(ctx, path, remote)
	if err == nil {
		return url, false, nil
	}
	log.Warn("cloud upload failed, keeping local backup", zap.String("object", remote), zap.Error(err))
	l.metrics.SinkFailed("cloud")

	backupURL, berr := storage.Backup(path, l.backupDir, remote)
	if berr != nil {
		return "", false, fmt.Errorf("upload: %v; backup: %w", err, berr)
	}
	return backupURL, true, nil
}

// runTag is the short run ID suffix that keeps artifact names distinct.
func runTag(runID string) string {
	tag := strings.ReplaceAll(runID, "-", "")
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return tag
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, records []model.PersonRecord) error {
	if records == nil {
		records = []model.PersonRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// ReadJSONArtifact decodes a JSON artifact written by the loader.
func ReadJSONArtifact(path string) ([]model.PersonRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []model.PersonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// parquetRow is the columnar layout; low-cardinality text columns are
// dictionary encoded.
type parquetRow struct {
	Name                 string  `parquet:"name"`
	AgeYears             int64   `parquet:"age_years"`
	AgeUnits             float64 `parquet:"age_units"`
	GenderOriginal       string  `parquet:"gender_original,dict"`
	GenderLocalized      string  `parquet:"gender_localized,dict"`
	IncomeSourceCurrency float64 `parquet:"income_source_currency"`
	IncomeTargetCurrency float64 `parquet:"income_target_currency"`
	ConversionRateUsed   float64 `parquet:"conversion_rate_used"`
	IllnessOriginal      string  `parquet:"illness_original,dict"`
	IllnessLocalized     string  `parquet:"illness_localized,dict"`
	ProcessedAt          string  `parquet:"processed_at"`
}

func toParquetRow(r model.PersonRecord) parquetRow {
	return parquetRow{
		Name:                 r.Name,
		AgeYears:             int64(r.AgeYears),
		AgeUnits:             r.AgeUnits,
		GenderOriginal:       r.GenderOriginal,
		GenderLocalized:      r.GenderLocalized,
		IncomeSourceCurrency: r.IncomeSourceCurrency,
		IncomeTargetCurrency: r.IncomeTargetCurrency,
		ConversionRateUsed:   r.ConversionRateUsed,
		IllnessOriginal:      r.IllnessOriginal,
		IllnessLocalized:     r.IllnessLocalized,
		ProcessedAt:          r.ProcessedAtText(),
	}
}

func writeParquet(w io.Writer, records []model.PersonRecord) error {
	rows := make([]parquetRow, len(records))
	for i, r := range records {
		rows[i] = toParquetRow(r)
	}

	pw := parquet.NewGenericWriter[parquetRow](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// recordValues renders a record in model.Columns order.
func recordValues(r model.PersonRecord) []string {
	return []string{
		r.Name,
		strconv.Itoa(r.AgeYears),
		formatFloat(r.AgeUnits),
		r.GenderOriginal,
		r.GenderLocalized,
		formatFloat(r.IncomeSourceCurrency),
		formatFloat(r.IncomeTargetCurrency),
		formatFloat(r.ConversionRateUsed),
		r.IllnessOriginal,
		r.IllnessLocalized,
		r.ProcessedAtText(),
	}
}

func writeCSV(w io.Writer, records []model.PersonRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(model.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(recordValues(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// sqlString quotes s as a SQL string literal; empty text becomes NULL.
func sqlString(s string) string {
	if s == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// InsertStatement renders one literal INSERT for r.
func InsertStatement(table string, r model.PersonRecord) string {
	processed := "NULL"
	if !r.ProcessedAt.IsZero() {
		processed = sqlString(r.ProcessedAtText())
	}
	values := []string{
		sqlString(r.Name),
		strconv.Itoa(r.AgeYears),
		formatFloat(r.AgeUnits),
		sqlString(r.GenderOriginal),
		sqlString(r.GenderLocalized),
		formatFloat(r.IncomeSourceCurrency),
		formatFloat(r.IncomeTargetCurrency),
		formatFloat(r.ConversionRateUsed),
		sqlString(r.IllnessOriginal),
		sqlString(r.IllnessLocalized),
		processed,
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		table, strings.Join(model.Columns, ", "), strings.Join(values, ", "))
}

func writeSQLScript(w io.Writer, records []model.PersonRecord, table string, at time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Insert script for %s\n", table)
	fmt.Fprintf(&b, "-- Generated at: %s\n", at.Format(model.ProcessedAtLayout))
	fmt.Fprintf(&b, "-- Records: %d\n\n", len(records))
	for _, r := range records {
		b.WriteString(InsertStatement(table, r))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(w io.Writer, records []model.PersonRecord, at time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildSummary(records, at)); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}
