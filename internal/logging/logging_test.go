package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenWritesFixedFormatLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repl.log")
	log, err := Open(path, LevelInfo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	log.Infof("mapping %s: cycle complete", "m1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimRight(string(data), "\n")
	if !strings.HasSuffix(line, "UTC: mapping m1: cycle complete") {
		t.Errorf("got %q, want a line ending in the fixed UTC message suffix", line)
	}
}

func TestLevelThresholdSuppressesBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repl.log")
	log, err := Open(path, LevelError)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	log.Infof("should be suppressed")
	log.Errorf("should appear")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "should be suppressed") {
		t.Error("expected Infof to be suppressed at LevelError threshold")
	}
	if !strings.Contains(string(data), "should appear") {
		t.Error("expected Errorf to pass the LevelError threshold")
	}
}

func TestReopenIfRotatedRecreatesRemovedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repl.log")
	log, err := Open(path, LevelDebug)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	log.Infof("before rotation")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	log.Infof("after rotation")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected the log file to be recreated after rotation: %v", err)
	}
	if !strings.Contains(string(data), "after rotation") {
		t.Error("expected the post-rotation message to land in the recreated file")
	}
	if strings.Contains(string(data), "before rotation") {
		t.Error("expected the recreated file to start empty, not carry over the pre-rotation content")
	}
}

func TestNoopDiscardsAndCloseIsSafe(t *testing.T) {
	log := Noop()
	log.Errorf("discarded")
	log.Infof("discarded")
	if err := log.Close(); err != nil {
		t.Errorf("expected Close on a nil-file Noop logger to be a safe no-op, got %v", err)
	}
}
