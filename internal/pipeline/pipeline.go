// Package pipeline extracts person records, transforms them into canonical
// records and loads them into every configured sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-person-etl/internal/logging"
	"go-person-etl/internal/metrics"
	"go-person-etl/internal/model"
	"go-person-etl/internal/storage"
)

// ErrNoInput means a run request names no input.
var ErrNoInput = errors.New("no input specified")

// RunRequest describes one pipeline run. Exactly one of InputFile,
// UseSample or Reader selects the input.
type RunRequest struct {
	InputFile string
	UseSample bool

	// Reader supplies uploaded content in Format, reported as SourceName.
	Reader     io.Reader
	Format     string
	SourceName string

	InsertToDatabase bool
	// Rate overrides the rate provider when set.
	Rate *float64
}

func (r RunRequest) source() string {
	switch {
	case r.Reader != nil:
		return r.SourceName
	case r.UseSample:
		return SampleName
	default:
		return r.InputFile
	}
}

// Options holds the optional collaborators of an Orchestrator.
type Options struct {
	Executions ExecutionStore
	Records    RecordSink
	Cloud      storage.ObjectStore
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Orchestrator drives a run through
// STARTED -> EXTRACTING -> TRANSFORMING -> LOADING -> FINALIZED.
// There is no retry between states: a failure finalizes the run as ERROR.
type Orchestrator struct {
	transformer *Transformer
	loader      *Loader
	executions  ExecutionStore
	records     RecordSink
	cloud       storage.ObjectStore
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
}

// NewOrchestrator wires a transformer and a loader with optional sinks.
func NewOrchestrator(t *Transformer, l *Loader, opts Options) *Orchestrator {
	return &Orchestrator{
		transformer: t,
		loader:      l,
		executions:  opts.Executions,
		records:     opts.Records,
		cloud:       opts.Cloud,
		metrics:     opts.Metrics,
		log:         logging.Component(opts.Logger, "orchestrator"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Loader returns the loader used for the LOADING phase.
func (o *Orchestrator) Loader() *Loader { return o.loader }

// Run executes one pipeline run. It always returns a report; err is set
// when the run finalized as ERROR. Cancelling ctx does not abort a run
// that has started; only its values are used.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*model.ExecutionReport, error) {
	start := o.now()
	runID := o.newID()
	ctx = logging.WithRunID(context.WithoutCancel(ctx), runID)
	log := logging.FromContext(ctx, o.log)

	report := &model.ExecutionReport{
		RunID:        runID,
		Status:       model.StatusInProgress,
		SourceFile:   req.source(),
		FilesCreated: map[string]string{},
		Errors:       []string{},
		Timestamp:    start,
	}
	exec := &model.Execution{
		RunID:      runID,
		StartedAt:  start,
		SourceFile: report.SourceFile,
		Status:     model.StatusInProgress,
	}

	tracker := newRunTracker(o.executions, log, o.now)
	tracker.Enter(ctx, model.PhaseStarted)
	o.beginExecution(ctx, exec, tracker, log)
	report.ExecutionID = exec.ID

	fail := func(err error) (*model.ExecutionReport, error) {
		tracker.Fail(ctx, err)
		tracker.Enter(ctx, model.PhaseFinalized)
		tracker.Done(0)

		report.Status = model.StatusError
		report.Success = false
		report.Errors = append(report.Errors, err.Error())
		o.finish(ctx, report, exec, start, tracker, err.Error(), log)
		return report, err
	}

	// EXTRACTING
	tracker.Enter(ctx, model.PhaseExtracting)
	extract, err := o.extract(req)
	if err != nil {
		return fail(fmt.Errorf("extract: %w", err))
	}
	tracker.Done(len(extract.Records))
	for _, w := range extract.Warnings {
		log.Warn("extraction check", zap.String("detail", w))
	}

	// TRANSFORMING
	tracker.Enter(ctx, model.PhaseTransforming)
	records, validation, err := o.transformer.Transform(ctx, extract.Records, req.Rate)
	if err != nil {
		return fail(fmt.Errorf("transform: %w", err))
	}
	validation.Warnings = append(validation.Warnings, extract.Warnings...)
	tracker.Done(len(records))
	report.Validation = validation
	report.RecordsProcessed = len(records)
	report.RecordsDropped = validation.DroppedRecords
	report.TRMUsed = validation.RateUsed

	// LOADING
	tracker.Enter(ctx, model.PhaseLoading)
	opts := LoadOptions{RunID: runID, Cloud: o.cloud}
	var loadErrors []string
	if req.InsertToDatabase {
		if o.records != nil {
			opts.DB = o.records
		} else {
			loadErrors = append(loadErrors, "database: sink not configured")
		}
	}
	result := o.loader.Load(ctx, records, opts)
	result.Errors = append(result.Errors, loadErrors...)
	for _, e := range result.Errors {
		tracker.Warn(ctx, e)
	}
	tracker.Done(len(result.FilesCreated))

	// FINALIZED
	tracker.Enter(ctx, model.PhaseFinalized)
	tracker.Done(0)

	report.FilesCreated = result.FilesCreated
	report.RecordsInserted = result.RecordsInserted
	report.RecordsSkipped = result.RecordsSkipped
	report.DatabaseInserted = result.RecordsInserted > 0
	report.CloudURL = result.CloudURL
	report.Errors = append(report.Errors, result.Errors...)
	report.Success = true
	report.Status = model.StatusCompleted
	if len(result.Errors) > 0 {
		report.Status = model.StatusCompletedWithWarnings
	}

	exec.RecordsProcessed = len(records)
	exec.RateUsed = validation.RateUsed
	exec.JSONFile = result.File(model.FormatJSON)
	exec.ParquetFile = result.File(model.FormatParquet)

	o.finish(ctx, report, exec, start, tracker, strings.Join(result.Errors, "; "), log)
	return report, nil
}

func (o *Orchestrator) extract(req RunRequest) (*Extract, error) {
	switch {
	case req.Reader != nil:
		return IngestReader(req.Reader, req.Format, req.SourceName)
	case req.UseSample:
		return IngestSample()
	case req.InputFile != "":
		return Ingest(req.InputFile)
	default:
		return nil, ErrNoInput
	}
}

// beginExecution checks the connection and persists the IN_PROGRESS row.
func (o *Orchestrator) beginExecution(ctx context.Context, exec *model.Execution, tracker *RunTracker, log *zap.Logger) {
	if o.executions == nil {
		return
	}
	if err := o.executions.EnsureAlive(ctx); err != nil {
		log.Warn("database unavailable, execution history skipped", zap.Error(err))
		return
	}
	id, err := o.executions.CreateExecution(ctx, exec)
	if err != nil {
		log.Warn("create execution record failed", zap.Error(err))
		return
	}
	exec.ID = id
	tracker.attach(id)
	tracker.Record(ctx, LevelInfo, "execution started", map[string]any{"run_id": exec.RunID, "source": exec.SourceFile})
}

func (o *Orchestrator) finish(ctx context.Context, report *model.ExecutionReport, exec *model.Execution, start time.Time, tracker *RunTracker, errMsg string, log *zap.Logger) {
	end := o.now()
	duration := end.Sub(start)
	report.DurationSeconds = duration.Seconds()
	report.Phases = tracker.Durations()
	report.ErrorDetails = tracker.Errors()

	exec.FinishedAt = &end
	exec.Status = report.Status
	exec.ErrorMessage = errMsg
	exec.DurationSeconds = duration.Seconds()

	if o.executions != nil && exec.ID != 0 {
		if err := o.executions.FinishExecution(ctx, exec); err != nil {
			log.Warn("update execution record failed", zap.Error(err))
		}
	}

	o.metrics.ObserveRun(string(report.Status), duration, report.RecordsProcessed, report.RecordsDropped)
	log.Info("run finalized",
		zap.String("status", string(report.Status)),
		zap.Int("records", report.RecordsProcessed),
		zap.Duration("duration", duration),
		zap.Int("errors", len(report.Errors)),
	)
}

// ImportRecords inserts already transformed records into the database
// with the same duplicate suppression as a run.
func (o *Orchestrator) ImportRecords(ctx context.Context, records []model.PersonRecord) (inserted, skipped int, err error) {
	if o.records == nil {
		return 0, 0, fmt.Errorf("database sink not configured")
	}
	if len(records) == 0 {
		return 0, 0, ErrNoData
	}
	ctx = context.WithoutCancel(ctx)
	if o.executions != nil {
		if err := o.executions.EnsureAlive(ctx); err != nil {
			return 0, 0, fmt.Errorf("database unavailable: %w", err)
		}
	}
	inserted, skipped, err = loadDatabase(ctx, o.records, records, logging.FromContext(ctx, o.log))
	if err != nil {
		o.metrics.SinkFailed("database")
		return 0, 0, err
	}
	o.metrics.ObserveInsert(inserted, skipped)
	return inserted, skipped, nil
}
