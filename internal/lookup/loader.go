package lookup

import (
	"bytes"
	"context"
	"log"
	"time"

	"mercancia/internal/config"
	"mercancia/internal/reader"
	"mercancia/internal/table"
)

// Loader fetches master tables, consulting the per-lookup on-disk cache
// when one is configured.
type Loader struct {
	client *Client

	// now is injectable to make cache-expiry tests deterministic.
	now func() time.Time
}

// NewLoader constructs a Loader around the given HTTP client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client, now: time.Now}
}

// Load resolves one lookup's master table. Disabled lookups and lookups
// without a URL return nil without error. Fetch and parse failures are soft:
// they log and return nil, which disables the lookup for this run.
func (l *Loader) Load(ctx context.Context, lk config.Lookup) *table.Table {
	if !lk.Enabled || lk.URL == "" {
		return nil
	}

	var cache *Cache
	if lk.Cache.Enabled && lk.Cache.Path != "" {
		c, err := OpenCache(lk.Cache.Path)
		if err != nil {
			log.Printf("lookup: cache unavailable: %v", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	ttlDays := lk.Cache.TTLDays
	if ttlDays <= 0 {
		ttlDays = 1
	}
	ttl := time.Duration(ttlDays) * 24 * time.Hour

	if cache != nil {
		if body, ok := cache.Get(lk.URL, ttl, l.now()); ok {
			if t := parseMaster(body); t != nil {
				return t
			}
		}
	}

	body, err := l.client.FetchCSV(ctx, lk.URL)
	if err != nil {
		log.Printf("lookup: disabled for this run: %v", err)
		return nil
	}
	t := parseMaster(body)
	if t == nil {
		log.Printf("lookup: unparseable master from %s; disabled for this run", lk.URL)
		return nil
	}
	if cache != nil {
		if err := cache.Put(lk.URL, body, l.now()); err != nil {
			log.Printf("lookup: %v", err)
		}
	}
	return t
}

// parseMaster decodes master bytes as UTF-8 CSV (BOM tolerated). Returns nil
// on parse failure or an empty table.
func parseMaster(body []byte) *table.Table {
	t, err := reader.ReadCSV(bytes.NewReader(body), reader.Options{})
	if err != nil || t.Len() == 0 {
		return nil
	}
	return t
}
