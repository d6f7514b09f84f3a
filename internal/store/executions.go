package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go-person-etl/internal/model"
)

const executionColumns = "id, run_id, started_at, finished_at, records_processed, rate_used, " +
	"json_file, parquet_file, source_file, status, error_message, duration_seconds"

// CreateExecution inserts an execution row and returns its ID.
func (s *Store) CreateExecution(ctx context.Context, exec *model.Execution) (int64, error) {
	var id int64
	err := s.pool().QueryRowContext(ctx, s.rebind(`INSERT INTO etl_executions
		(run_id, started_at, records_processed, rate_used, source_file, status)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		exec.RunID, exec.StartedAt, exec.RecordsProcessed, exec.RateUsed,
		nullString(exec.SourceFile), string(exec.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}
	return id, nil
}

// FinishExecution writes the final state of an execution.
func (s *Store) FinishExecution(ctx context.Context, exec *model.Execution) error {
	var finished sql.NullTime
	if exec.FinishedAt != nil {
		finished = sql.NullTime{Time: *exec.FinishedAt, Valid: true}
	}
	res, err := s.pool().ExecContext(ctx, s.rebind(`UPDATE etl_executions SET
		finished_at = ?, records_processed = ?, rate_used = ?, json_file = ?, parquet_file = ?,
		status = ?, error_message = ?, duration_seconds = ?
		WHERE id = ?`),
		finished, exec.RecordsProcessed, exec.RateUsed,
		nullString(exec.JSONFile), nullString(exec.ParquetFile),
		string(exec.Status), nullString(exec.ErrorMessage), exec.DurationSeconds,
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution %d: %w", exec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("execution %d: %w", exec.ID, ErrNotFound)
	}
	return nil
}

// AppendLog attaches a log line to an execution.
func (s *Store) AppendLog(ctx context.Context, entry model.ExecutionLog) error {
	var detail sql.NullString
	if len(entry.Detail) > 0 {
		b, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("encode log detail: %w", err)
		}
		detail = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.pool().ExecContext(ctx, s.rebind(`INSERT INTO etl_logs
		(execution_id, level, message, detail, created_at) VALUES (?, ?, ?, ?, ?)`),
		entry.ExecutionID, entry.Level, entry.Message, detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (model.Execution, error) {
	var (
		e                               model.Execution
		finished                        sql.NullTime
		jsonFile, parquet, source, errm sql.NullString
		status                          string
	)
	err := row.Scan(&e.ID, &e.RunID, &e.StartedAt, &finished, &e.RecordsProcessed, &e.RateUsed,
		&jsonFile, &parquet, &source, &status, &errm, &e.DurationSeconds)
	if err != nil {
		return e, err
	}
	if finished.Valid {
		e.FinishedAt = &finished.Time
	}
	e.JSONFile = jsonFile.String
	e.ParquetFile = parquet.String
	e.SourceFile = source.String
	e.Status = model.Status(status)
	e.ErrorMessage = errm.String
	return e, nil
}

// ListExecutions returns the most recent executions first.
func (s *Store) ListExecutions(ctx context.Context, limit int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool().QueryContext(ctx,
		s.rebind("SELECT "+executionColumns+" FROM etl_executions ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []model.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// GetExecution returns one execution and its log lines.
func (s *Store) GetExecution(ctx context.Context, id int64) (*model.Execution, []model.ExecutionLog, error) {
	db := s.pool()
	e, err := scanExecution(db.QueryRowContext(ctx,
		s.rebind("SELECT "+executionColumns+" FROM etl_executions WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("execution %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query execution %d: %w", id, err)
	}

	rows, err := db.QueryContext(ctx, s.rebind(`SELECT id, execution_id, level, message, detail, created_at
		FROM etl_logs WHERE execution_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	logs := []model.ExecutionLog{}
	for rows.Next() {
		var l model.ExecutionLog
		var detail sql.NullString
		if err := rows.Scan(&l.ID, &l.ExecutionID, &l.Level, &l.Message, &detail, &l.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan log: %w", err)
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &l.Detail); err != nil {
				return nil, nil, fmt.Errorf("decode log detail: %w", err)
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &e, logs, nil
}
