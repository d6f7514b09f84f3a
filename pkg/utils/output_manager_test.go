package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArtifactPath(t *testing.T) {
	om := NewOutputManager("/out")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	got := om.ArtifactPath("transformed_data", "ab12cd34", "json", at)
	want := filepath.Join("/out", "transformed_data_20260304_050607_ab12cd34.json")
	if got != want {
		t.Fatalf("ArtifactPath = %q, want %q", got, want)
	}

	if a, b := om.ArtifactPath("x", "run1", ".csv", at), om.ArtifactPath("x", "run2", ".csv", at); a == b {
		t.Fatal("distinct tags must give distinct paths")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	om := NewOutputManager(dir)

	if _, err := om.Latest("transformed_data", "json"); !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("empty dir err = %v, want ErrNoArtifact", err)
	}

	older := filepath.Join(dir, "transformed_data_20260101_000000_a.json")
	newer := filepath.Join(dir, "transformed_data_20260102_000000_b.json")
	other := filepath.Join(dir, "insert_script_20260103_000000_c.sql")
	for _, p := range []string{older, newer, other} {
		if err := os.WriteFile(p, []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	base := time.Now()
	os.Chtimes(older, base.Add(-time.Hour), base.Add(-time.Hour))
	os.Chtimes(newer, base, base)

	got, err := om.Latest("transformed_data", "json")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != newer {
		t.Fatalf("Latest = %q, want %q", got, newer)
	}
}

func TestGetFileType(t *testing.T) {
	om := NewOutputManager("")
	cases := map[string]string{
		"a.CSV":     "csv",
		"a.json":    "json",
		"a.xlsx":    "excel",
		"a.parquet": "parquet",
		"a.sql":     "sql",
		"a.bin":     "unknown",
	}
	for name, want := range cases {
		if got := om.GetFileType(name); got != want {
			t.Errorf("GetFileType(%q) = %q, want %q", name, got, want)
		}
	}
}
