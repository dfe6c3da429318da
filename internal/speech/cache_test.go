package speech

import (
	"os"
	"testing"

	"github.com/hammamikhairi/ottonav/internal/logger"
)

func TestCacheMemory(t *testing.T) {
	c := NewNarrationCache("voice-a", logger.New(logger.LevelOff, nil))

	if _, ok := c.Get("boil water"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Put("boil water", []byte("wav"))
	data, ok := c.Get("boil water")
	if !ok || string(data) != "wav" {
		t.Fatalf("Get = %q, %v", data, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("stats = %d/%d, want 1/1", hits, misses)
	}
}

func TestCacheKeyIncludesVoice(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	a := NewNarrationCache("voice-a", log)
	b := NewNarrationCache("voice-b", log)
	if a.key("x") == b.key("x") {
		t.Fatal("voices must not share keys")
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewNarrationCache("v", logger.New(logger.LevelOff, nil), WithMaxEntries(2))
	c.Put("one", []byte("1"))
	c.Put("two", []byte("2"))
	c.Put("one", []byte("1b")) // update does not reorder
	c.Put("three", []byte("3"))

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("one"); ok {
		t.Fatal("oldest entry should be evicted")
	}
	if _, ok := c.Get("three"); !ok {
		t.Fatal("newest entry missing")
	}
}

func TestCacheDiskLayer(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)

	w := NewNarrationCache("v", log, WithCacheDir(dir, true))
	w.Put("stir", []byte("wav"))
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("disk files = %d, want 1", len(files))
	}

	// A fresh read-only cache still warms from disk.
	r := NewNarrationCache("v", log, WithCacheDir(dir, false))
	if data, ok := r.Get("stir"); !ok || string(data) != "wav" {
		t.Fatalf("disk Get = %q, %v", data, ok)
	}
	if r.Len() != 1 {
		t.Fatal("disk hit should be promoted to memory")
	}
	r.Put("fold", []byte("x"))
	files, _ = os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatal("read-only cache wrote to disk")
	}
}
