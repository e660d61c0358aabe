package inbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendWritesLineAndTouchesSemaphore(t *testing.T) {
	dir := t.TempDir()
	ib, err := Open(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := ib.Append(map[string]string{"kind": "test"}); err != nil {
		t.Fatal(err)
	}

	lines, err := readLines(filepath.Join(dir, "inbox.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if _, err := os.Stat(filepath.Join(dir, "newdata")); err != nil {
		t.Fatalf("expected semaphore file to exist: %v", err)
	}
}

func TestAppendTruncatesPastMaxLines(t *testing.T) {
	dir := t.TempDir()
	ib, err := Open(dir, 3)
	if err != nil {
		t.Fatal(err)
	}
	ib.lastTruncate = ib.lastTruncate.Add(-TruncateInterval - 1) // force truncation eligible immediately

	for i := 0; i < 5; i++ {
		if err := ib.Append(map[string]int{"n": i}); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := readLines(filepath.Join(dir, "inbox.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) > 3 {
		t.Fatalf("expected truncation to cap lines at 3, got %d", len(lines))
	}
}
