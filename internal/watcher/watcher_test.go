package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, []string{".jsonl"}, rec.record, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "batch.jsonl")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, strings.Repeat("{}\n", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "batch.jsonl") {
		t.Errorf("expected one debounced callback for batch.jsonl, got %v", got)
	}
}

func TestWatcher_IgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(dir, nil, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("directories should not be reported, got %v", got)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.jsonl", []string{".jsonl"}, true},
		{"/a/b.JSONL", []string{".jsonl"}, true},
		{"/a/b.ndjson", []string{"jsonl", "ndjson"}, true},
		{"/a/b.jsonl.done", []string{".jsonl"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.jsonl"), "{}"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "old.jsonl.done"), "{}"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher(dir, []string{".jsonl"}, rec.record)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	got := rec.snapshot()
	if len(got) != 1 || !strings.HasSuffix(got[0], "a.jsonl") {
		t.Errorf("expected only a.jsonl, got %v", got)
	}
}

func TestWatcher_StartCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox", "reviews")
	w := NewWatcher(dir, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("inbox should exist after Start: %v", err)
	}
	if w.Dir() != filepath.Clean(dir) {
		t.Errorf("Dir() = %s", w.Dir())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
