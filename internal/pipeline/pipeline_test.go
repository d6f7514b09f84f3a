package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"go-person-etl/internal/metrics"
	"go-person-etl/internal/model"
	"go-person-etl/internal/rate"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type harness struct {
	orch  *Orchestrator
	sink  *memSink
	execs *memExecutions
	m     *metrics.Metrics
}

func newHarness(t *testing.T, rates RateSource) *harness {
	t.Helper()
	h := &harness{
		sink:  &memSink{batchSize: 10},
		execs: newMemExecutions(),
		m:     metrics.New("etl", prometheus.NewRegistry()),
	}
	ids := []string{"aaaaaaaa-0000-0000-0000-000000000001", "bbbbbbbb-0000-0000-0000-000000000002", "cccccccc-0000-0000-0000-000000000003"}
	n := 0

	dir := t.TempDir()
	loader := NewLoader(filepath.Join(dir, "out"), filepath.Join(dir, "backup"), nil, h.m)
	loader.now = fixedClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))

	h.orch = NewOrchestrator(NewTransformer(rates, nil), loader, Options{
		Executions: h.execs,
		Records:    h.sink,
		Metrics:    h.m,
	})
	h.orch.newID = func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}
	return h
}

const anaCSV = "name,age,gender,income,illness\nAna,25,Female,1000,No\n"

func TestRunCompleted(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	path := writeInput(t, "people.csv", anaCSV)

	report, err := h.orch.Run(context.Background(), RunRequest{InputFile: path, InsertToDatabase: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != model.StatusCompleted || !report.Success {
		t.Fatalf("status = %s errors=%v", report.Status, report.Errors)
	}
	if report.RecordsProcessed != 1 || report.TRMUsed != 4000 || report.RecordsInserted != 1 || !report.DatabaseInserted {
		t.Errorf("report = %+v", report)
	}
	if len(report.FilesCreated) != len(model.ArtifactFormats) {
		t.Errorf("files = %v", report.FilesCreated)
	}
	for _, p := range []model.Phase{model.PhaseStarted, model.PhaseExtracting, model.PhaseTransforming, model.PhaseLoading, model.PhaseFinalized} {
		if _, ok := report.Phases[p]; !ok {
			t.Errorf("phase %s not recorded", p)
		}
	}

	exec := h.execs.execs[report.ExecutionID]
	if exec.Status != model.StatusCompleted || exec.FinishedAt == nil || exec.RecordsProcessed != 1 || exec.RateUsed != 4000 {
		t.Errorf("execution = %+v", exec)
	}
	if exec.JSONFile == "" || exec.ParquetFile == "" || exec.SourceFile != path {
		t.Errorf("execution files = %+v", exec)
	}
	if len(h.execs.logs) == 0 {
		t.Error("no execution logs written")
	}
	if got := testutil.ToFloat64(h.m.RunsTotal.WithLabelValues(string(model.StatusCompleted))); got != 1 {
		t.Errorf("runs_total{COMPLETED} = %v", got)
	}
}

func TestRunNoDataIsError(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	path := writeInput(t, "people.csv", "name,age,gender,income,illness\n,25,Female,1000,No\n,30,Male,10,Yes\n")

	report, err := h.orch.Run(context.Background(), RunRequest{InputFile: path})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v", err)
	}
	if report == nil || report.Status != model.StatusError || report.Success {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "no data") {
		t.Errorf("errors = %v", report.Errors)
	}
	if d := report.ErrorDetails; len(d) != 1 || d[0].Severity != "fatal" || d[0].Phase != model.PhaseTransforming {
		t.Errorf("error details = %+v", d)
	}
	exec := h.execs.execs[report.ExecutionID]
	if exec.Status != model.StatusError || exec.ErrorMessage == "" {
		t.Errorf("execution = %+v", exec)
	}
	if len(report.FilesCreated) != 0 {
		t.Errorf("no artifacts expected: %v", report.FilesCreated)
	}
}

func TestRunMissingInput(t *testing.T) {
	h := newHarness(t, remoteRate(4000))

	if _, err := h.orch.Run(context.Background(), RunRequest{}); !errors.Is(err, ErrNoInput) {
		t.Fatalf("err = %v", err)
	}
	report, err := h.orch.Run(context.Background(), RunRequest{InputFile: filepath.Join(t.TempDir(), "nope.csv")})
	if !errors.Is(err, os.ErrNotExist) || report.Status != model.StatusError {
		t.Fatalf("err = %v status = %s", err, report.Status)
	}
}

func TestRunUnreachableRateStillCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	provider := rate.NewProvider(url, time.Second)
	h := newHarness(t, provider)

	report, err := h.orch.Run(context.Background(), RunRequest{UseSample: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status == model.StatusError {
		t.Fatalf("status = %s", report.Status)
	}
	if report.TRMUsed != rate.DefaultFallback {
		t.Fatalf("TRMUsed = %v, want %v", report.TRMUsed, rate.DefaultFallback)
	}
	if report.SourceFile != SampleName {
		t.Errorf("source = %q", report.SourceFile)
	}
}

func TestRunTwiceIsIdempotentForDatabase(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	path := writeInput(t, "people.csv", anaCSV+"Luis,40,Male,2000,Yes\n")
	req := RunRequest{InputFile: path, InsertToDatabase: true}

	first, err := h.orch.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.orch.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if first.RecordsInserted != 2 || second.RecordsInserted != 0 || second.RecordsSkipped != 2 {
		t.Fatalf("inserted %d then %d (skipped %d)", first.RecordsInserted, second.RecordsInserted, second.RecordsSkipped)
	}
	if second.Status != model.StatusCompleted {
		t.Errorf("duplicates are not errors: %s %v", second.Status, second.Errors)
	}
	for format, p := range first.FilesCreated {
		if second.FilesCreated[format] == p {
			t.Errorf("%s artifact not distinct: %s", format, p)
		}
	}
}

func TestRunDatabaseFailureCompletesWithWarnings(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	h.sink.failAfter = 1
	path := writeInput(t, "people.csv", anaCSV)

	report, err := h.orch.Run(context.Background(), RunRequest{InputFile: path, InsertToDatabase: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != model.StatusCompletedWithWarnings || report.RecordsInserted != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(h.sink.committed()) != 0 {
		t.Error("rows committed after failed transaction")
	}
	if report.FilesCreated[model.FormatJSON] == "" {
		t.Error("file sinks should still run")
	}
	d := report.ErrorDetails
	if len(d) != 1 || d[0].Severity != "warning" || d[0].Sink != "database" || d[0].Phase != model.PhaseLoading {
		t.Errorf("error details = %+v", d)
	}
}

func TestRunUploadedReader(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	r := 3900.0

	report, err := h.orch.Run(context.Background(), RunRequest{
		Reader:     strings.NewReader(anaCSV),
		Format:     FormatCSV,
		SourceName: "upload.csv",
		Rate:       &r,
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.TRMUsed != 3900 || report.SourceFile != "upload.csv" || report.RecordsInserted != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestImportRecords(t *testing.T) {
	h := newHarness(t, remoteRate(4000))
	records := []model.PersonRecord{person("Ana", 25, "Female", 1000)}

	if n, _, err := h.orch.ImportRecords(context.Background(), records); err != nil || n != 1 {
		t.Fatalf("first import: %d %v", n, err)
	}
	n, skipped, err := h.orch.ImportRecords(context.Background(), records)
	if err != nil || n != 0 || skipped != 1 {
		t.Fatalf("second import: %d %d %v", n, skipped, err)
	}
	if _, _, err := h.orch.ImportRecords(context.Background(), nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("empty import: %v", err)
	}
}
