package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-person-etl/internal/model"
)

// DefaultBatchSize is used when a RecordSink reports no batch size.
const DefaultBatchSize = 100

// RecordTx is one relational transaction over the canonical record table.
type RecordTx interface {
	// FindDuplicate reports whether a row with the same duplicate key exists.
	FindDuplicate(ctx context.Context, key model.DuplicateKey) (bool, error)
	// Insert writes records and returns how many rows were inserted.
	Insert(ctx context.Context, records []model.PersonRecord) (int, error)
	Commit() error
	// Rollback is a no-op after Commit.
	Rollback() error
}

// RecordSink is the relational sink of the loader.
type RecordSink interface {
	// BeginLoad acquires a scoped connection and opens a transaction on it.
	// The connection is released when the transaction ends.
	BeginLoad(ctx context.Context) (RecordTx, error)
	BatchSize() int
}

// loadDatabase inserts records that are not already stored, in a single
// transaction. Any error rolls the whole batch back.
func loadDatabase(ctx context.Context, sink RecordSink, records []model.PersonRecord, log *zap.Logger) (inserted, skipped int, err error) {
	tx, err := sink.BeginLoad(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	size := sink.BatchSize()
	if size <= 0 {
		size = DefaultBatchSize
	}

	seen := make(map[model.DuplicateKey]bool, len(records))
	batch := make([]model.PersonRecord, 0, size)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := tx.Insert(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		inserted += n
		batch = batch[:0]
		return nil
	}

	for _, r := range records {
		key := r.Key()
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		dup, err := tx.FindDuplicate(ctx, key)
		if err != nil {
			return 0, 0, fmt.Errorf("duplicate check: %w", err)
		}
		if dup {
			log.Debug("duplicate skipped", zap.String("name", r.Name), zap.Int("age_years", r.AgeYears))
			skipped++
			continue
		}

		batch = append(batch, r)
		if len(batch) >= size {
			if err := flush(); err != nil {
				return 0, 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	if skipped > 0 {
		log.Warn("duplicate records skipped", zap.Int("skipped", skipped), zap.Int("inserted", inserted))
	}
	return inserted, skipped, nil
}
