package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalURLScheme prefixes URLs of artifacts kept in the local backup directory.
const LocalURLScheme = "local://"

// Backup copies localPath into dir as name and returns a local:// URL.
// It is the fallback when an upload fails.
func Backup(localPath, dir, name string) (string, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory %s: %w", dir, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	target := filepath.Join(dir, filepath.Base(name))
	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy to %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}

	return LocalURLScheme + target, nil
}

// IsLocalURL reports whether url points into the local backup directory.
func IsLocalURL(url string) bool {
	return strings.HasPrefix(url, LocalURLScheme)
}

// ListBackups returns file names in dir starting with prefix.
func ListBackups(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
