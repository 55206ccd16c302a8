package crawler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/anthropics/fileindexd/internal/store"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWalkCollectsEntriesAcrossSubtrees(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.txt"), 1)
	writeFile(t, filepath.Join(root, "a", "one.txt"), 1)
	writeFile(t, filepath.Join(root, "a", "nested", "two.txt"), 1)
	writeFile(t, filepath.Join(root, "b", "three.txt"), 1)

	c := New(Options{Workers: 2, BatchSize: 2})

	var mu sync.Mutex
	var paths []string
	add := func(ctx context.Context, batch []store.Entry) error {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range batch {
			paths = append(paths, e.Path)
		}
		return nil
	}

	result, err := c.Walk(context.Background(), root, add, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	// top.txt, a/, a/one.txt, a/nested/, a/nested/two.txt, b/, b/three.txt = 7
	if result.Scanned != 7 {
		t.Errorf("Scanned: got %d, want 7", result.Scanned)
	}

	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			t.Errorf("path %s recorded more than once", p)
		}
		seen[p] = true
	}
	if !seen[filepath.Join(root, "a", "nested", "two.txt")] {
		t.Error("missing deeply nested file")
	}
}

func TestWalkAppliesIgnoreFunc(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), 1)
	writeFile(t, filepath.Join(root, "skip", "x.txt"), 1)

	c := New(Options{
		IgnoreFunc: func(path string) bool { return filepath.Base(path) == "skip" },
	})

	var paths []string
	add := func(ctx context.Context, batch []store.Entry) error {
		for _, e := range batch {
			paths = append(paths, e.Path)
		}
		return nil
	}

	if _, err := c.Walk(context.Background(), root, add, nil); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	for _, p := range paths {
		if filepath.Base(filepath.Dir(p)) == "skip" || filepath.Base(p) == "skip" {
			t.Errorf("ignored subtree leaked entry: %s", p)
		}
	}
}

func TestWalkReturnsErrorForMissingRoot(t *testing.T) {
	c := New(Options{})
	_, err := c.Walk(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"), func(context.Context, []store.Entry) error { return nil }, nil)
	if err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWalkFiresProgressPerSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "one.txt"), 1)
	writeFile(t, filepath.Join(root, "b", "two.txt"), 1)

	c := New(Options{Workers: 2})

	var mu sync.Mutex
	calls := 0
	onProgress := func(done int64) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}

	if _, err := c.Walk(context.Background(), root, func(context.Context, []store.Entry) error { return nil }, onProgress); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("progress calls: got %d, want 2 (one per completed subtree)", calls)
	}
}
