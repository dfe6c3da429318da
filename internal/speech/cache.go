package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/ottonav/internal/logger"
)

// CacheOption configures a NarrationCache.
type CacheOption func(*NarrationCache)

// WithCacheDir enables the disk layer. Existing files are always read;
// new entries are written only when write is true.
func WithCacheDir(dir string, write bool) CacheOption {
	return func(c *NarrationCache) {
		c.dir = dir
		c.diskWrite = write
	}
}

// WithMaxEntries bounds the in-memory layer. The oldest entry is evicted
// first. Zero means unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(c *NarrationCache) { c.maxEntries = n }
}

// NarrationCache is a two-tier (memory + disk) cache of synthesized
// narration. Keys are sha256(voice + ":" + text), so a voice change misses
// until the voice is switched back.
type NarrationCache struct {
	mu         sync.Mutex
	entries    map[string][]byte
	order      []string // insertion order for eviction
	log        *logger.Logger
	voice      string
	dir        string
	diskWrite  bool
	maxEntries int
	hits       int64
	misses     int64
}

// NewNarrationCache creates a cache keyed by voice.
func NewNarrationCache(voice string, log *logger.Logger, opts ...CacheOption) *NarrationCache {
	c := &NarrationCache{
		entries: make(map[string][]byte),
		log:     log.Named("cache"),
		voice:   voice,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dir != "" && c.diskWrite {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			c.log.Error("failed to create cache dir %s: %v", c.dir, err)
		}
	}
	return c
}

// Get returns cached audio for text, checking memory first, then disk.
func (c *NarrationCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		c.log.Debug("hit (mem): %s (%d bytes)", truncateForLog(text, 40), len(data))
		return data, true
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.store(key, data)
			c.hits++
			c.mu.Unlock()
			c.log.Debug("hit (disk): %s (%d bytes)", truncateForLog(text, 40), len(data))
			return data, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text in memory, and on disk when writes are enabled.
func (c *NarrationCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.store(key, audio)
	size := len(c.entries)
	c.mu.Unlock()
	c.log.Debug("store: %s (%d bytes, %d entries)", truncateForLog(text, 40), len(audio), size)

	if c.dir != "" && c.diskWrite {
		if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
			c.log.Error("disk write failed for %s: %v", key[:12], err)
		}
	}
}

// Len returns the number of in-memory entries.
func (c *NarrationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *NarrationCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear empties the memory layer. The disk layer is left alone.
func (c *NarrationCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.order = nil
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
}

// store must be called with mu held.
func (c *NarrationCache) store(key string, audio []byte) {
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *NarrationCache) key(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *NarrationCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
