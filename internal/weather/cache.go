package weather

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cache is a TTL file cache for fetched weather payloads. Entries are
// JSON envelopes keyed by a hash of the request; anything expired or
// unreadable is treated as a miss and removed.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache returns a cache rooted at dir with the given entry lifetime.
// A non-positive ttl disables expiry.
func NewCache(dir string, ttl time.Duration) *Cache {
	return &Cache{dir: dir, ttl: ttl}
}

type cacheEnvelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Payload   json.RawMessage `json:"payload"`
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".json")
}

// Get unmarshals the cached payload for key into v. It returns false on
// a miss, an expired entry, or a corrupt file; corrupt and expired files
// are deleted on the way out.
func (c *Cache) Get(key string, v any) bool {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		os.Remove(path)
		return false
	}
	if c.ttl > 0 && time.Since(env.FetchedAt) > c.ttl {
		os.Remove(path)
		return false
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		os.Remove(path)
		return false
	}
	return true
}

// Put stores v under key.
func (c *Cache) Put(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling cache payload: %w", err)
	}
	data, err := json.Marshal(cacheEnvelope{FetchedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshaling cache envelope: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}
