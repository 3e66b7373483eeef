package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// File extensions a Cache writes. Clear refuses to remove anything else.
const (
	recordExt = ".json"
	blobExt   = ".bin"
)

// Cache is a directory of keyed JSON records and binary blobs. Search uses
// it as the trial workspace: one record per trial and one blob per checkpoint.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives a stable key from the given parts.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_ = writeString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the content of every file in paths, in sorted path order.
// Missing files contribute their path so adding them later changes the result.
func Fingerprint(paths ...string) (string, error) {
	h := sha256.New()

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	for _, path := range sorted {
		if err := hashFile(h, path); err != nil {
			if os.IsNotExist(err) {
				if err := writeString(h, path); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("hashing %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get decodes the record stored under key into v. It reports false on a miss
// or an unreadable record.
func (c *Cache) Get(key string, v any) bool {
	if c.dir == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(key, recordExt))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Invalid cache entry, treat as miss
		return false
	}
	return true
}

// Put stores v as the record for key.
func (c *Cache) Put(key string, v any) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	if err := os.WriteFile(c.path(key, recordExt), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Create opens the blob for key for writing, truncating any previous content.
func (c *Cache) Create(key string) (io.WriteCloser, error) {
	if c.dir == "" {
		return nil, fmt.Errorf("cache has no directory")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	f, err := os.Create(c.path(key, blobExt))
	if err != nil {
		return nil, fmt.Errorf("creating blob: %w", err)
	}
	return f, nil
}

// Open opens the blob for key.
func (c *Cache) Open(key string) (io.ReadCloser, error) {
	if c.dir == "" {
		return nil, fmt.Errorf("cache has no directory")
	}
	f, err := os.Open(c.path(key, blobExt))
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Clear removes the cache directory.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: only remove directories that hold nothing but cache files.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		switch filepath.Ext(entry.Name()) {
		case recordExt, blobExt:
		default:
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) path(key, ext string) string {
	return filepath.Join(c.dir, key+ext)
}

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}
