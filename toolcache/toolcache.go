// Package toolcache keeps short-lived tool outputs keyed by tool call id,
// decoupled from conversation storage.
package toolcache

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/pkg/kv"
)

const keyPrefix = "toolresp:"

// Entry is one cached tool output
type Entry struct {
	ToolCallID string    `json:"toolCallId"`
	ToolName   string    `json:"toolName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Options for the cache
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// DefaultOptions returns the standard TTL and sweep interval
func DefaultOptions() Options {
	return Options{
		TTL:           config.ToolCacheTTL,
		SweepInterval: config.ToolCacheSweepInterval,
	}
}

// Cache stores tool outputs with a TTL. Entries expire lazily on Get and are
// also removed by a background sweep so memory stays bounded between accesses.
type Cache struct {
	store *kv.KV
	opts  Options
	now   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache over the given KV store
func New(store *kv.KV, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = config.ToolCacheTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = config.ToolCacheSweepInterval
	}
	return &Cache{
		store: store,
		opts:  opts,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Store records a tool output at the current time
func (c *Cache) Store(callID, toolName, content string) error {
	entry := Entry{
		ToolCallID: callID,
		ToolName:   toolName,
		Content:    content,
		CreatedAt:  c.now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// Badger's own TTL is a second-granularity backstop; the createdAt check
	// in Get and the sweep enforce the exact TTL.
	return c.store.SetWithTTL(keyPrefix+callID, data, c.opts.TTL+time.Minute)
}

// Get returns the entry unless it is missing or older than the TTL.
// A stale entry found on read is deleted opportunistically.
func (c *Cache) Get(callID string) (*Entry, bool) {
	data, err := c.store.Get(keyPrefix + callID)
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("[CACHE] corrupt entry for %s: %v", callID, err)
		_ = c.store.Delete(keyPrefix + callID)
		return nil, false
	}
	if c.now().Sub(entry.CreatedAt) > c.opts.TTL {
		_ = c.store.Delete(keyPrefix + callID)
		return nil, false
	}
	return &entry, true
}

// Delete removes an entry
func (c *Cache) Delete(callID string) error {
	return c.store.Delete(keyPrefix + callID)
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	n, _ := c.store.Count(keyPrefix)
	return n
}

// Start runs the background sweep until Stop is called
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(c.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					log.Printf("[CACHE] swept %d stale tool responses", n)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweep
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Sweep removes all entries older than the TTL and returns how many were
// deleted. Runs on the sweep interval; exported so callers can force a pass.
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.opts.TTL)
	var stale []string
	_ = c.store.Iterate(keyPrefix, func(key string, value []byte) bool {
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			stale = append(stale, key)
			return true
		}
		if entry.CreatedAt.Before(cutoff) {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		_ = c.store.Delete(key)
	}
	return len(stale)
}
