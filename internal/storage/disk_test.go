package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMeasureUsage(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "reviews.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	idx := filepath.Join(dir, "index")
	if err := os.Mkdir(idx, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	u, err := MeasureUsage(db, idx)
	if err != nil {
		t.Fatal(err)
	}
	if u.DatabaseBytes != 8 {
		t.Errorf("database bytes: got %d, want 8", u.DatabaseBytes)
	}
	if u.IndexBytes != 3 {
		t.Errorf("index bytes: got %d, want 3", u.IndexBytes)
	}
	if u.Total() != 11 {
		t.Errorf("total: got %d, want 11", u.Total())
	}

	u, err = MeasureUsage(filepath.Join(dir, "missing.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	if u.Total() != 0 {
		t.Errorf("missing paths: got %d, want 0", u.Total())
	}
}
