package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"go-person-etl/internal/model"
	"go-person-etl/internal/storage"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	l := NewLoader(filepath.Join(dir, "output"), filepath.Join(dir, "backup"), nil, nil)
	l.now = fixedClock(time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC))
	return l
}

func TestLoadWritesEveryArtifact(t *testing.T) {
	l := newTestLoader(t)
	records := []model.PersonRecord{
		person("Ana", 25, "Female", 1000),
		person("O'Brien", 40, "Male", 2500.5),
	}

	result := l.Load(context.Background(), records, LoadOptions{RunID: "0a1b2c3d-4e5f-6789-abcd-ef0123456789"})
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %v", result.Errors)
	}
	for _, format := range model.ArtifactFormats {
		path := result.File(format)
		if path == "" {
			t.Fatalf("missing %s artifact", format)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
	}
	if got := filepath.Base(result.File(model.FormatJSON)); got != "transformed_data_20260506_070809_0a1b2c3d.json" {
		t.Errorf("json name = %s", got)
	}
	if got := filepath.Base(result.File(model.FormatSQL)); !strings.HasPrefix(got, "insert_script_20260506_070809") {
		t.Errorf("sql name = %s", got)
	}
	if result.DatabaseUsed || result.CloudURL != "" {
		t.Errorf("optional sinks used without being configured: %+v", result)
	}

	back, err := ReadJSONArtifact(result.File(model.FormatJSON))
	if err != nil || len(back) != 2 || back[1].Name != "O'Brien" || !back[0].ProcessedAt.Equal(records[0].ProcessedAt) {
		t.Fatalf("json round trip: %v %+v", err, back)
	}

	rows, err := parquet.ReadFile[parquetRow](result.File(model.FormatParquet))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(rows) != 2 || rows[0].GenderLocalized != "Female" || rows[1].ProcessedAt != "2026-01-02 03:04:05" {
		t.Errorf("parquet rows = %+v", rows)
	}

	csvData, _ := os.ReadFile(result.File(model.FormatCSV))
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 3 || lines[0] != strings.Join(model.Columns, ",") {
		t.Errorf("csv = %q", csvData)
	}

	sqlData, _ := os.ReadFile(result.File(model.FormatSQL))
	if !strings.Contains(string(sqlData), "-- Records: 2") || !strings.Contains(string(sqlData), "'O''Brien'") {
		t.Errorf("sql = %s", sqlData)
	}
	if strings.Count(string(sqlData), "INSERT INTO person_records") != 2 {
		t.Errorf("want one INSERT per record: %s", sqlData)
	}

	var summary Summary
	raw, _ := os.ReadFile(result.File(model.FormatSummary))
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Metadata.TotalRecords != 2 || summary.Statistics.AgeStats.MaxYears != 40 || summary.Statistics.IncomeStats.MinSource != 1000 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestInsertStatement(t *testing.T) {
	r := person("Ana", 25, "Female", 1000)
	r.IllnessOriginal = ""
	got := InsertStatement("person_records", r)
	want := "INSERT INTO person_records (name, age_years, age_units, gender_original, gender_localized, " +
		"income_source_currency, income_target_currency, conversion_rate_used, illness_original, illness_localized, processed_at) " +
		"VALUES ('Ana', 25, 5, 'Female', 'Female', 1000, 4000000, 4000, NULL, 'No', '2026-01-02 03:04:05');"
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestLoadSinkFailureDoesNotBlockOthers(t *testing.T) {
	l := newTestLoader(t)
	// a regular file where the output directory should be
	blocker := filepath.Join(t.TempDir(), "output")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	l.out.BaseOutputDir = blocker

	sink := &memSink{}
	result := l.Load(context.Background(), []model.PersonRecord{person("Ana", 25, "Female", 1000)},
		LoadOptions{RunID: "r1", DB: sink})

	if len(result.FilesCreated) != 0 || len(result.Errors) != len(model.ArtifactFormats) {
		t.Fatalf("files=%v errors=%v", result.FilesCreated, result.Errors)
	}
	if result.RecordsInserted != 1 || len(sink.committed()) != 1 {
		t.Errorf("database sink should still run: %+v", result)
	}
}

func TestLoadDatabaseMidBatchFailureRollsBack(t *testing.T) {
	l := newTestLoader(t)
	sink := &memSink{batchSize: 2, failAfter: 2}
	records := []model.PersonRecord{
		person("A", 20, "M", 1), person("B", 21, "M", 2), person("C", 22, "M", 3),
		person("D", 23, "M", 4), person("E", 24, "M", 5),
	}

	result := l.Load(context.Background(), records, LoadOptions{RunID: "r1", DB: sink})

	if n := len(sink.committed()); n != 0 {
		t.Fatalf("%d rows committed after failure, want 0", n)
	}
	if sink.rollbacks != 1 {
		t.Errorf("rollbacks = %d", sink.rollbacks)
	}
	if result.RecordsInserted != 0 {
		t.Errorf("RecordsInserted = %d", result.RecordsInserted)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "database:") {
		t.Fatalf("errors = %v", result.Errors)
	}
	for _, format := range []string{model.FormatJSON, model.FormatCSV, model.FormatParquet} {
		if result.File(format) == "" {
			t.Errorf("%s artifact missing after database failure", format)
		}
	}
}

func TestLoadTwiceSuppressesDuplicates(t *testing.T) {
	l := newTestLoader(t)
	sink := &memSink{batchSize: 2}
	records := []model.PersonRecord{
		person("Ana", 25, "Female", 1000),
		person("Ana", 25, "Female", 1000),
		person("Luis", 40, "Male", 2000),
	}

	first := l.Load(context.Background(), records, LoadOptions{RunID: "11111111-aaaa", DB: sink})
	if first.RecordsInserted != 2 || first.RecordsSkipped != 1 {
		t.Fatalf("first load: inserted=%d skipped=%d", first.RecordsInserted, first.RecordsSkipped)
	}

	second := l.Load(context.Background(), records, LoadOptions{RunID: "22222222-bbbb", DB: sink})
	if second.RecordsInserted != 0 || second.RecordsSkipped != 3 {
		t.Fatalf("second load: inserted=%d skipped=%d", second.RecordsInserted, second.RecordsSkipped)
	}
	if len(sink.committed()) != 2 {
		t.Fatalf("rows = %d", len(sink.committed()))
	}
	for _, format := range model.ArtifactFormats {
		if first.File(format) == second.File(format) {
			t.Errorf("%s artifact reused: %s", format, first.File(format))
		}
	}
}

func TestLoadCloudFallsBackToLocalCopy(t *testing.T) {
	l := newTestLoader(t)
	result := l.Load(context.Background(), []model.PersonRecord{person("Ana", 25, "Female", 1000)},
		LoadOptions{RunID: "r1", Cloud: failingCloud{}})

	if len(result.Errors) != 0 {
		t.Fatalf("fallback should not be an error: %v", result.Errors)
	}
	if !result.CloudBackup || !storage.IsLocalURL(result.CloudURL) {
		t.Fatalf("cloud url = %q backup=%v", result.CloudURL, result.CloudBackup)
	}
	if !strings.HasSuffix(result.CloudURL, "person_data_20260506_070809_r1.json") {
		t.Errorf("cloud url = %q", result.CloudURL)
	}
	if _, err := os.Stat(strings.TrimPrefix(result.CloudURL, storage.LocalURLScheme)); err != nil {
		t.Errorf("backup copy: %v", err)
	}
}

func TestLoadCloudBackupsKeepEveryRun(t *testing.T) {
	l := newTestLoader(t)
	records := []model.PersonRecord{person("Ana", 25, "Female", 1000)}

	first := l.Load(context.Background(), records, LoadOptions{RunID: "aaaaaaaa-1111", Cloud: failingCloud{}})
	second := l.Load(context.Background(), records, LoadOptions{RunID: "bbbbbbbb-2222", Cloud: failingCloud{}})
	if first.CloudURL == second.CloudURL {
		t.Fatalf("runs in the same second share %q", first.CloudURL)
	}
	for _, url := range []string{first.CloudURL, second.CloudURL} {
		if _, err := os.Stat(strings.TrimPrefix(url, storage.LocalURLScheme)); err != nil {
			t.Errorf("backup copy %s: %v", url, err)
		}
	}
}

func TestLoadCloudUpload(t *testing.T) {
	l := newTestLoader(t)
	store, err := storage.NewLocalStore(t.TempDir(), "etl/")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	result := l.Load(context.Background(), []model.PersonRecord{person("Ana", 25, "Female", 1000)},
		LoadOptions{RunID: "r1", Cloud: store})
	if result.CloudBackup || !strings.HasSuffix(result.CloudURL, "etl/person_data_20260506_070809_r1.json") {
		t.Fatalf("cloud url = %q backup=%v", result.CloudURL, result.CloudBackup)
	}
}
