package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileTimestampLayout is the timestamp embedded in artifact names.
const FileTimestampLayout = "20060102_150405"

// ErrNoArtifact is returned when no artifact matches a lookup.
var ErrNoArtifact = errors.New("no artifact found")

// OutputManager handles output file naming and lookup.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}

// ArtifactPath builds <dir>/<prefix>_<timestamp>_<tag>.<ext>.
// tag keeps names distinct for runs started within the same second.
func (om *OutputManager) ArtifactPath(prefix, tag, ext string, at time.Time) string {
	name := fmt.Sprintf("%s_%s", prefix, at.Format(FileTimestampLayout))
	if tag != "" {
		name += "_" + tag
	}
	return filepath.Join(om.BaseOutputDir, name+"."+strings.TrimPrefix(ext, "."))
}

// Latest returns the most recently modified artifact with the given prefix and extension.
func (om *OutputManager) Latest(prefix, ext string) (string, error) {
	pattern := filepath.Join(om.BaseOutputDir, prefix+"_*."+strings.TrimPrefix(ext, "."))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", ErrNoArtifact
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, candidate{path: m, mod: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", ErrNoArtifact
	}

	// newest first; names embed the timestamp so they break ties
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].mod.Equal(candidates[j].mod) {
			return candidates[i].mod.After(candidates[j].mod)
		}
		return candidates[i].path > candidates[j].path
	})
	return candidates[0].path, nil
}

// GetDownloadURL returns the API path serving the latest artifact of a format.
func (om *OutputManager) GetDownloadURL(format string) string {
	return "/api/download/" + format
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv", ".txt":
		return "csv"
	case ".json":
		return "json"
	case ".xlsx":
		return "excel"
	case ".parquet":
		return "parquet"
	case ".sql":
		return "sql"
	default:
		return "unknown"
	}
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
