package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	if err == nil {
		t.Fatal("expected an error for empty roots")
	}
}

func TestWatcherInitialScanEmitsExistingPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case p := <-paths:
			got[filepath.Base(p)] = true
		case <-timeout:
			t.Fatalf("timed out, saw %v", got)
		}
	}
	if !got["a.pdf"] || !got["b.PDF"] {
		t.Errorf("scan emitted %v", got)
	}
	if got["notes.txt"] {
		t.Error("non-PDF emitted by initial scan")
	}
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, Debounce: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("%PDF-"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case p := <-paths:
		if filepath.Base(p) != "new.pdf" {
			t.Errorf("path = %s", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event for the new file")
	}
}
