package ipsmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

const fixtureDir = "testdata"

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// copyFixtures copies testdata into a fresh temporary directory so tests can
// modify source files.
func copyFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir(fixtureDir)
	if err != nil {
		t.Fatalf("reading fixtures: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src, err := os.Open(filepath.Join(fixtureDir, e.Name()))
		if err != nil {
			t.Fatalf("opening fixture: %v", err)
		}
		dst, err := os.Create(filepath.Join(dir, e.Name()))
		if err != nil {
			src.Close()
			t.Fatalf("creating fixture copy: %v", err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			t.Fatalf("copying fixture %s: %v", e.Name(), err)
		}
	}
	return dir
}

func ptr(v float64) *float64 { return &v }
