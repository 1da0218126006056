package probecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "probes.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreGetPut(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "/tmp/a.mkv", 100, 200); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	if err := store.Put(ctx, "/tmp/a.mkv", 100, 200, 5400.5); err != nil {
		t.Fatalf("Put: %v", err)
	}
	duration, ok, err := store.Get(ctx, "/tmp/a.mkv", 100, 200)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if duration != 5400.5 {
		t.Fatalf("duration = %v", duration)
	}

	// A changed size or mtime misses.
	if _, ok, _ := store.Get(ctx, "/tmp/a.mkv", 101, 200); ok {
		t.Fatal("expected miss for changed size")
	}
	if _, ok, _ := store.Get(ctx, "/tmp/a.mkv", 100, 201); ok {
		t.Fatal("expected miss for changed mtime")
	}
}

func TestPutEvictsStaleRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "/tmp/a.mkv", 100, 200, 10); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "/tmp/a.mkv", 150, 300, 20); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "/tmp/a.mkv", 100, 200); ok {
		t.Fatal("stale row should be evicted")
	}
	duration, ok, _ := store.Get(ctx, "/tmp/a.mkv", 150, 300)
	if !ok || duration != 20 {
		t.Fatalf("expected fresh row, got ok=%v duration=%v", ok, duration)
	}
}

type countingProber struct {
	calls    int
	duration float64
}

func (p *countingProber) Duration(ctx context.Context, path string) (float64, error) {
	p.calls++
	return p.duration, nil
}

func TestCachingProberSkipsRepeatProbes(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	fake := &countingProber{duration: 42.25}
	prober := NewCachingProber(store, fake, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		duration, err := prober.Duration(ctx, path)
		if err != nil {
			t.Fatalf("Duration: %v", err)
		}
		if duration != 42.25 {
			t.Fatalf("duration = %v", duration)
		}
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 probe call, got %d", fake.calls)
	}

	// Rewriting the file invalidates the entry.
	if err := os.WriteFile(path, []byte("different payload"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	if _, err := prober.Duration(ctx, path); err != nil {
		t.Fatalf("Duration after rewrite: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 probe calls after rewrite, got %d", fake.calls)
	}
}
