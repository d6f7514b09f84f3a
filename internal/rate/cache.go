package rate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"go-person-etl/internal/logging"
)

// ErrNoEntry is returned when the cache holds no usable entry.
var ErrNoEntry = errors.New("no cached rate")

// DefaultTTL is the freshness window of a cached rate.
const DefaultTTL = 24 * time.Hour

// Entry is the single persisted cache record.
type Entry struct {
	CapturedAt time.Time `json:"captured_at"`
	Rate       float64   `json:"rate"`
}

// Cache supplies a recently fetched rate. Implementations never fail loudly:
// a read problem is a miss and a write problem is logged and dropped.
type Cache interface {
	Read() (float64, bool)
	Write(rate float64)
}

// FileCache persists the last fetched rate as a small JSON file.
// Concurrent writers are last-writer-wins.
type FileCache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
	log  *zap.Logger
}

// NewFileCache creates a file-backed cache. ttl <= 0 means DefaultTTL.
func NewFileCache(path string, ttl time.Duration, logger *zap.Logger) *FileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileCache{
		path: path,
		ttl:  ttl,
		now:  time.Now,
		log:  logging.Component(logger, "rate_cache"),
	}
}

// Path returns the cache file location.
func (c *FileCache) Path() string { return c.path }

// Load reads the persisted entry regardless of its age.
func (c *FileCache) Load() (*Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoEntry
		}
		return nil, fmt.Errorf("read rate cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse rate cache: %w", err)
	}
	if e.CapturedAt.IsZero() || e.Rate <= 0 {
		return nil, fmt.Errorf("parse rate cache: incomplete entry")
	}
	return &e, nil
}

// Read returns the cached rate if it is younger than the TTL.
// Stale entries are ignored, not deleted; the next Write replaces them.
func (c *FileCache) Read() (float64, bool) {
	e, err := c.Load()
	if err != nil {
		if !errors.Is(err, ErrNoEntry) {
			c.log.Warn("rate cache unreadable, treating as miss", zap.String("path", c.path), zap.Error(err))
		}
		return 0, false
	}

	age := c.now().Sub(e.CapturedAt)
	if age < 0 || age >= c.ttl {
		c.log.Debug("rate cache stale", zap.Duration("age", age), zap.Duration("ttl", c.ttl))
		return 0, false
	}

	c.log.Debug("rate cache hit", zap.Float64("rate", e.Rate), zap.Duration("age", age))
	return e.Rate, true
}

// Write overwrites the persisted entry with rate captured now.
func (c *FileCache) Write(rate float64) {
	if err := c.write(Entry{CapturedAt: c.now().UTC(), Rate: rate}); err != nil {
		c.log.Warn("rate cache write failed", zap.String("path", c.path), zap.Error(err))
	}
}

func (c *FileCache) write(e Entry) error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rate cache: %w", err)
	}

	// unique temp name so concurrent runs never rename each other's file
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create rate cache temp file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write rate cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close rate cache temp file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename rate cache file: %w", err)
	}
	return nil
}

// noopCache is used when caching is disabled.
type noopCache struct{}

// NoCache returns a Cache that never hits and discards writes.
func NoCache() Cache { return noopCache{} }

func (noopCache) Read() (float64, bool) { return 0, false }
func (noopCache) Write(float64)         {}
