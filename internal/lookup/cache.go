package lookup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

// Cache persists fetched master bodies in a small SQLite file so repeated
// runs within the TTL window skip the network. Entries are keyed by a hash
// of the source URL. Concurrent runs racing on the file are an accepted
// limitation; SQLite's own locking keeps the file consistent.
type Cache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS master_cache (
	key        TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	body       BLOB NOT NULL
);`

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("lookup: cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("lookup: open cache %s: %w", path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lookup: init cache %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached body for url if it was fetched within ttl of now.
func (c *Cache) Get(url string, ttl time.Duration, now time.Time) ([]byte, bool) {
	var fetchedAt int64
	var body []byte
	err := c.db.QueryRow(
		`SELECT fetched_at, body FROM master_cache WHERE key = ?`, cacheKey(url),
	).Scan(&fetchedAt, &body)
	if err != nil {
		return nil, false
	}
	if now.Sub(time.Unix(fetchedAt, 0)) > ttl {
		return nil, false
	}
	return body, true
}

// Put stores or refreshes the cached body for url.
func (c *Cache) Put(url string, body []byte, now time.Time) error {
	_, err := c.db.Exec(
		`INSERT INTO master_cache (key, url, fetched_at, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET fetched_at = excluded.fetched_at, body = excluded.body`,
		cacheKey(url), url, now.Unix(), body,
	)
	if err != nil {
		return fmt.Errorf("lookup: cache put: %w", err)
	}
	return nil
}

func cacheKey(url string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(url))
}
