package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// cacheFileVersion is written into the persisted file. Readers ignore
	// fields they do not know, so bumping this is only needed for
	// incompatible rewrites.
	cacheFileVersion = 1

	// maxConsecutiveFailures is how many times a cached parser may fail in
	// a row before its entry is dropped
	maxConsecutiveFailures = 2
)

// Entry is one cached selection: which parser last worked for a connection.
type Entry struct {
	// Parser is the registry id of the last successfully-used parser
	Parser string `json:"parser"`

	// LastSuccess is when that parser last completed a cycle
	LastSuccess time.Time `json:"last_success"`

	// Failures counts consecutive failures since the last success. It is
	// persisted so a flapping parser does not get a fresh two-strike
	// budget on every process restart.
	Failures int `json:"failures,omitempty"`
}

// cacheFile is the persisted shape. Unknown fields in an existing file are
// ignored on load, keeping the format forward-compatible across releases.
type cacheFile struct {
	Version     int              `json:"version"`
	Connections map[string]Entry `json:"connections"`
}

// Cache maps a modem connection identity to its last-known-good parser.
// Reads are concurrent; writes happen at most once per completed cycle per
// key. Optionally persisted to a JSON file so cold starts skip the full
// detection sweep.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	path    string
}

// NewCache creates an in-memory cache. path may be empty to disable
// persistence; when set, any existing file is loaded and unreadable files
// are treated as a cold start rather than an error.
func NewCache(path string) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		path:    path,
	}
	if path != "" {
		c.load()
	}
	return c
}

// Get returns the entry for a connection, if any.
func (c *Cache) Get(connection string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[connection]
	return entry, ok
}

// RecordSuccess writes or overwrites the entry after a successful parse and
// resets the failure counter.
func (c *Cache) RecordSuccess(connection, parser string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[connection] = Entry{
		Parser:      parser,
		LastSuccess: time.Now().UTC(),
	}
	return c.persistLocked()
}

// RecordFailure notes a failed cycle for the cached parser. After
// maxConsecutiveFailures in a row the entry is removed, forcing the next
// cycle through the full detection sweep.
func (c *Cache) RecordFailure(connection, parser string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[connection]
	if !ok || entry.Parser != parser {
		return nil
	}

	entry.Failures++
	if entry.Failures >= maxConsecutiveFailures {
		delete(c.entries, connection)
	} else {
		c.entries[connection] = entry
	}
	return c.persistLocked()
}

// Invalidate removes the entry for a connection. Called when the user
// changes their explicit parser configuration.
func (c *Cache) Invalidate(connection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[connection]; !ok {
		return nil
	}
	delete(c.entries, connection)
	return c.persistLocked()
}

// load reads the persisted file. Missing files are a normal cold start;
// corrupt files are discarded (a stale selection cache is never worth
// failing startup over).
func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil || file.Connections == nil {
		return
	}
	c.entries = file.Connections
}

// persistLocked writes the cache atomically (temp file + rename) so a crash
// mid-write never leaves a truncated file. Caller holds c.mu.
func (c *Cache) persistLocked() error {
	if c.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cacheFile{
		Version:     cacheFileVersion,
		Connections: c.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal selection cache: %w", err)
	}

	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}
