// Package store persists canonical records and execution history in a
// relational database (sqlite3 or postgres).
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"go-person-etl/internal/logging"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	BatchSize    int
}

// Store owns a connection pool. Each load acquires its own scoped
// connection; nothing else holds a transaction open across calls.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	s := &Store{cfg: cfg, log: logging.Component(logger, "store")}
	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("database ready", zap.String("driver", cfg.Driver))
	return s, nil
}

func (s *Store) connect(ctx context.Context) (*sql.DB, error) {
	if s.cfg.Driver == DriverSQLite && s.cfg.DSN != ":memory:" {
		path := strings.TrimPrefix(strings.SplitN(s.cfg.DSN, "?", 2)[0], "file:")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(s.cfg.Driver, s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if s.cfg.Driver == DriverSQLite {
		// one writer avoids "database is locked"
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	} else if s.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}
	return db, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema/" + s.dialectName() + ".sql")
	if err != nil {
		return err
	}
	_, err = s.pool().ExecContext(ctx, string(schema))
	return err
}

func (s *Store) dialectName() string {
	if s.cfg.Driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

// pool returns the current pool; EnsureAlive may swap it.
func (s *Store) pool() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Driver returns the configured driver name.
func (s *Store) Driver() string { return s.cfg.Driver }

// BatchSize is the number of rows per multi-row insert.
func (s *Store) BatchSize() int { return s.cfg.BatchSize }

// EnsureAlive pings the database and reopens the pool if the ping fails.
func (s *Store) EnsureAlive(ctx context.Context) error {
	db := s.pool()
	err := db.PingContext(ctx)
	if err == nil {
		return nil
	}
	s.log.Warn("database ping failed, reconnecting", zap.Error(err))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != db {
		// another caller already reconnected
		return s.db.PingContext(ctx)
	}
	fresh, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	s.db.Close()
	s.db = fresh
	s.log.Info("database reconnected")
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool().PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	return rebind(s.cfg.Driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
