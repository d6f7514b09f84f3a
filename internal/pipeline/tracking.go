package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-person-etl/internal/model"
)

// Log levels written to execution logs.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// ExecutionStore persists execution history. Failures are logged by the
// caller and never fail a run.
type ExecutionStore interface {
	// EnsureAlive checks the connection and reopens it if dropped.
	EnsureAlive(ctx context.Context) error
	CreateExecution(ctx context.Context, exec *model.Execution) (int64, error)
	FinishExecution(ctx context.Context, exec *model.Execution) error
	AppendLog(ctx context.Context, entry model.ExecutionLog) error
}

// RunTracker follows one run through its phases and mirrors each
// transition into the execution log.
type RunTracker struct {
	store  ExecutionStore
	execID int64
	log    *zap.Logger
	now    func() time.Time

	phases  []model.PhaseRecord
	current *model.PhaseRecord
	errors  []model.ErrorDetail
}

func newRunTracker(store ExecutionStore, log *zap.Logger, now func() time.Time) *RunTracker {
	return &RunTracker{store: store, log: log, now: now}
}

// attach binds the tracker to a persisted execution row.
func (t *RunTracker) attach(execID int64) { t.execID = execID }

// Enter closes the current phase and starts the next one.
func (t *RunTracker) Enter(ctx context.Context, phase model.Phase) {
	t.closePhase(0, nil)
	t.current = &model.PhaseRecord{Phase: phase, StartedAt: t.now()}
	t.log.Info("phase started", zap.String("phase", string(phase)))
	t.Record(ctx, LevelInfo, "phase "+string(phase), nil)
}

// Done closes the current phase with the number of records it produced.
func (t *RunTracker) Done(records int) { t.closePhase(records, nil) }

// Fail closes the current phase with err.
func (t *RunTracker) Fail(ctx context.Context, err error) {
	phase := model.PhaseStarted
	if t.current != nil {
		phase = t.current.Phase
	}
	t.errors = append(t.errors, model.ErrorDetail{
		Phase:     phase,
		Message:   err.Error(),
		Severity:  "fatal",
		Timestamp: t.now(),
	})
	t.closePhase(0, err)
	t.log.Error("phase failed", zap.String("phase", string(phase)), zap.Error(err))
	t.Record(ctx, LevelError, "phase "+string(phase)+" failed", map[string]any{"error": err.Error()})
}

// Warn records a non-fatal error raised by a sink. Messages of the form
// "<sink>: <error>" are attributed to that sink.
func (t *RunTracker) Warn(ctx context.Context, message string) {
	phase := model.PhaseLoading
	if t.current != nil {
		phase = t.current.Phase
	}
	sink, _, _ := strings.Cut(message, ": ")
	if sink == message {
		sink = ""
	}
	t.errors = append(t.errors, model.ErrorDetail{
		Phase:     phase,
		Sink:      sink,
		Message:   message,
		Severity:  "warning",
		Timestamp: t.now(),
	})
	t.Record(ctx, LevelWarning, message, nil)
}

func (t *RunTracker) closePhase(records int, err error) {
	if t.current == nil {
		return
	}
	t.current.EndedAt = t.now()
	t.current.Duration = t.current.EndedAt.Sub(t.current.StartedAt)
	t.current.Records = records
	if err != nil {
		t.current.Error = err.Error()
	}
	t.phases = append(t.phases, *t.current)
	t.current = nil
}

// Record appends a line to the execution log when a store is attached.
func (t *RunTracker) Record(ctx context.Context, level, message string, detail map[string]any) {
	if t.store == nil || t.execID == 0 {
		return
	}
	entry := model.ExecutionLog{
		ExecutionID: t.execID,
		Level:       level,
		Message:     message,
		Detail:      detail,
		CreatedAt:   t.now(),
	}
	if err := t.store.AppendLog(ctx, entry); err != nil {
		t.log.Warn("execution log write failed", zap.Error(err))
	}
}

// Errors returns every fatal and warning error seen by the run.
func (t *RunTracker) Errors() []model.ErrorDetail { return t.errors }

// Durations maps each closed phase to its length in seconds.
func (t *RunTracker) Durations() map[model.Phase]float64 {
	out := make(map[model.Phase]float64, len(t.phases))
	for _, p := range t.phases {
		out[p.Phase] = p.Duration.Seconds()
	}
	return out
}
