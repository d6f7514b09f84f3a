package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go-person-etl/internal/model"
)

// DefaultRecordLimit caps ListRecords when no limit is given.
const DefaultRecordLimit = 1000

const recordColumns = "name, age_years, age_units, gender_original, gender_localized, " +
	"income_source_currency, income_target_currency, conversion_rate_used, " +
	"illness_original, illness_localized, processed_at"

// LoadTx is a transaction on a connection acquired for one load.
// The connection is released when the transaction commits or rolls back.
type LoadTx struct {
	conn   *sql.Conn
	tx     *sql.Tx
	driver string
	once   sync.Once
}

// BeginLoad acquires a dedicated connection and starts a transaction on it.
func (s *Store) BeginLoad(ctx context.Context) (*LoadTx, error) {
	conn, err := s.pool().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &LoadTx{conn: conn, tx: tx, driver: s.cfg.Driver}, nil
}

func (t *LoadTx) release() {
	t.once.Do(func() { t.conn.Close() })
}

// FindDuplicate reports whether a record with the same duplicate key exists.
func (t *LoadTx) FindDuplicate(ctx context.Context, key model.DuplicateKey) (bool, error) {
	q := rebind(t.driver, `SELECT 1 FROM person_records
		WHERE name = ? AND age_years = ? AND gender_original = ? AND income_source_currency = ?
		LIMIT 1`)
	var one int
	err := t.tx.QueryRowContext(ctx, q, key.Name, key.AgeYears, key.Gender, key.Income).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert writes records with one multi-row INSERT.
func (t *LoadTx) Insert(ctx context.Context, records []model.PersonRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(model.Columns)), ", ") + ")"
	rows := make([]string, len(records))
	args := make([]any, 0, len(records)*len(model.Columns))
	for i, r := range records {
		rows[i] = row
		args = append(args,
			r.Name, r.AgeYears, r.AgeUnits,
			r.GenderOriginal, r.GenderLocalized,
			r.IncomeSourceCurrency, r.IncomeTargetCurrency, r.ConversionRateUsed,
			r.IllnessOriginal, r.IllnessLocalized,
			r.ProcessedAt,
		)
	}
	q := rebind(t.driver, "INSERT INTO person_records ("+recordColumns+") VALUES "+strings.Join(rows, ", "))

	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(records), nil
	}
	return int(n), nil
}

// Commit commits and releases the connection.
func (t *LoadTx) Commit() error {
	defer t.release()
	return t.tx.Commit()
}

// Rollback rolls back and releases the connection. It is a no-op after Commit.
func (t *LoadTx) Rollback() error {
	defer t.release()
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ListRecords returns the most recently inserted records.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]model.StoredRecord, error) {
	if limit <= 0 {
		limit = DefaultRecordLimit
	}
	rows, err := s.pool().QueryContext(ctx,
		s.rebind("SELECT id, "+recordColumns+", created_at FROM person_records ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []model.StoredRecord{}
	for rows.Next() {
		var r model.StoredRecord
		if err := rows.Scan(
			&r.ID, &r.Name, &r.AgeYears, &r.AgeUnits,
			&r.GenderOriginal, &r.GenderLocalized,
			&r.IncomeSourceCurrency, &r.IncomeTargetCurrency, &r.ConversionRateUsed,
			&r.IllnessOriginal, &r.IllnessLocalized,
			&r.ProcessedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats aggregates the record table.
func (s *Store) Stats(ctx context.Context) (*model.DatabaseStats, error) {
	db := s.pool()
	stats := &model.DatabaseStats{}

	var ageYears, ageUnits, incSource, incTarget sql.NullFloat64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(age_years), AVG(age_units),
		AVG(income_source_currency), AVG(income_target_currency) FROM person_records`).
		Scan(&stats.TotalRecords, &ageYears, &ageUnits, &incSource, &incTarget)
	if err != nil {
		return nil, fmt.Errorf("query averages: %w", err)
	}
	stats.AverageAgeYears = ageYears.Float64
	stats.AverageAgeUnits = ageUnits.Float64
	stats.AverageIncomeSource = incSource.Float64
	stats.AverageIncomeTarget = incTarget.Float64

	if stats.GenderDistribution, err = s.distribution(ctx, "gender_localized"); err != nil {
		return nil, err
	}
	if stats.IllnessDistribution, err = s.distribution(ctx, "illness_localized"); err != nil {
		return nil, err
	}

	var last sql.NullTime
	err = db.QueryRowContext(ctx, "SELECT processed_at FROM person_records ORDER BY processed_at DESC LIMIT 1").Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query last processed: %w", err)
	}
	if last.Valid {
		stats.LastProcessedAt = &last.Time
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM etl_executions").Scan(&stats.TotalExecutions); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	return stats, nil
}

// distribution counts rows per value of a fixed column name.
func (s *Store) distribution(ctx context.Context, column string) (map[string]int, error) {
	rows, err := s.pool().QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM person_records GROUP BY "+column)
	if err != nil {
		return nil, fmt.Errorf("query %s distribution: %w", column, err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("scan %s distribution: %w", column, err)
		}
		out[value] = n
	}
	return out, rows.Err()
}
