package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-person-etl/internal/model"
	"go-person-etl/internal/rate"
)

type fixedRate struct {
	quote rate.Quote
	calls int
}

func (f *fixedRate) Lookup(context.Context) rate.Quote {
	f.calls++
	return f.quote
}

func remoteRate(v float64) *fixedRate {
	return &fixedRate{quote: rate.Quote{Rate: v, Source: rate.SourceRemote, Valid: rate.Validate(v)}}
}

// memSink is an in-memory RecordSink. Rows only become visible on Commit.
type memSink struct {
	mu        sync.Mutex
	rows      []model.PersonRecord
	batchSize int
	failAfter int // fail the Nth Insert call; 0 never fails
	inserts   int
	begins    int
	rollbacks int
}

func (s *memSink) BatchSize() int { return s.batchSize }

func (s *memSink) BeginLoad(context.Context) (RecordTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &memTx{sink: s}, nil
}

func (s *memSink) committed() []model.PersonRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PersonRecord(nil), s.rows...)
}

type memTx struct {
	sink    *memSink
	pending []model.PersonRecord
	done    bool
}

func (t *memTx) FindDuplicate(_ context.Context, key model.DuplicateKey) (bool, error) {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	for _, r := range t.sink.rows {
		if r.Key() == key {
			return true, nil
		}
	}
	for _, r := range t.pending {
		if r.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Insert(_ context.Context, records []model.PersonRecord) (int, error) {
	t.sink.mu.Lock()
	t.sink.inserts++
	n := t.sink.inserts
	t.sink.mu.Unlock()
	if t.sink.failAfter > 0 && n >= t.sink.failAfter {
		return 0, errors.New("connection reset by peer")
	}
	t.pending = append(t.pending, records...)
	return len(records), nil
}

func (t *memTx) Commit() error {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.rows = append(t.sink.rows, t.pending...)
	t.pending = nil
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.sink.mu.Lock()
	t.sink.rollbacks++
	t.sink.mu.Unlock()
	t.pending = nil
	t.done = true
	return nil
}

// memExecutions records execution history in memory.
type memExecutions struct {
	execs   map[int64]model.Execution
	logs    []model.ExecutionLog
	nextID  int64
	pingErr error
}

func newMemExecutions() *memExecutions {
	return &memExecutions{execs: map[int64]model.Execution{}}
}

func (m *memExecutions) EnsureAlive(context.Context) error { return m.pingErr }

func (m *memExecutions) CreateExecution(_ context.Context, exec *model.Execution) (int64, error) {
	m.nextID++
	e := *exec
	e.ID = m.nextID
	m.execs[e.ID] = e
	return e.ID, nil
}

func (m *memExecutions) FinishExecution(_ context.Context, exec *model.Execution) error {
	if _, ok := m.execs[exec.ID]; !ok {
		return errors.New("unknown execution")
	}
	m.execs[exec.ID] = *exec
	return nil
}

func (m *memExecutions) AppendLog(_ context.Context, entry model.ExecutionLog) error {
	m.logs = append(m.logs, entry)
	return nil
}

// failingCloud rejects every upload.
type failingCloud struct{}

func (failingCloud) Upload(context.Context, string, string) (string, error) {
	return "", errors.New("access denied")
}
func (failingCloud) List(context.Context, string) ([]string, error) { return nil, nil }
func (failingCloud) Close() error                                   { return nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func person(name string, age int, gender string, income float64) model.PersonRecord {
	return model.PersonRecord{
		Name:                 name,
		AgeYears:             age,
		AgeUnits:             float64(age) / 5,
		GenderOriginal:       gender,
		GenderLocalized:      gender,
		IncomeSourceCurrency: income,
		IncomeTargetCurrency: income * 4000,
		ConversionRateUsed:   4000,
		IllnessOriginal:      "No",
		IllnessLocalized:     "No",
		ProcessedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
