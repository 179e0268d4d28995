package miscutils

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

const cacheContentsName = "miscutils.CacheContents"

// CacheContents is what a Cache persists. A zero Expiry never expires.
type CacheContents struct {
	Expiry time.Time
	Data   map[string]any
}

// Expired reports whether the contents have expired at now.
func (c *CacheContents) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Cache is a string-keyed map persisted through a Serializer. Every mutation
// is written back immediately. Values that cannot be serialized are kept in
// memory but persisted as placeholders.
type Cache struct {
	mu         sync.Mutex
	serializer *Serializer
	ttl        time.Duration
	now        func() time.Time
	contents   *CacheContents

	serializerOpts []Option
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL makes freshly created contents expire after d. Contents loaded
// from the store keep the expiry they were written with.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSerializerOptions passes opts to the Cache's Serializer.
func WithSerializerOptions(opts ...Option) CacheOption {
	return func(c *Cache) {
		c.serializerOpts = append(c.serializerOpts, opts...)
	}
}

// NewCache loads the cache held in store. Missing, unreadable-as-cache or
// expired contents are replaced by empty contents, which are persisted right
// away.
func NewCache(ctx context.Context, store Store, opts ...CacheOption) (*Cache, error) {
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	s, err := NewSerializer(store, c.serializerOpts...)
	if err != nil {
		return nil, err
	}
	c.serializer = s

	v, err := s.Deserialize(ctx)
	if err != nil && !errors.Is(err, ErrDecodeFailed) {
		return nil, err
	}
	if contents, ok := v.(*CacheContents); ok && contents != nil && !contents.Expired(c.now()) {
		if contents.Data == nil {
			contents.Data = make(map[string]any)
		}
		c.contents = contents
		return c, nil
	}

	c.contents = c.fresh()
	if _, err := s.Serialize(ctx, c.contents); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) fresh() *CacheContents {
	contents := &CacheContents{Data: make(map[string]any)}
	if c.ttl > 0 {
		contents.Expiry = c.now().Add(c.ttl)
	}
	return contents
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.contents.Data[key]
	return v, ok
}

// GetOr returns the value stored under key, or fallback.
func (c *Cache) GetOr(key string, fallback any) any {
	if v, ok := c.Get(key); ok {
		return v
	}
	return fallback
}

// Put stores val under key and persists the cache.
func (c *Cache) Put(ctx context.Context, key string, val any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contents.Data[key] = val
	return c.save(ctx)
}

// Pop removes key and returns the value it held.
func (c *Cache) Pop(ctx context.Context, key string) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.contents.Data[key]
	if !ok {
		return nil, false, nil
	}
	delete(c.contents.Data, key)
	return v, true, c.save(ctx)
}

// SetDefault returns the value under key, storing def there first when the
// key is missing.
func (c *Cache) SetDefault(ctx context.Context, key string, def any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.contents.Data[key]; ok {
		return v, nil
	}
	c.contents.Data[key] = def
	return def, c.save(ctx)
}

// Contains reports whether key is present.
func (c *Cache) Contains(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.contents.Data))
	for k := range c.contents.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contents.Data)
}

// Expiry returns when the contents expire; the zero time means never.
func (c *Cache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contents.Expiry
}

// Valid reports whether the contents have not expired yet.
func (c *Cache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.contents.Expired(c.now())
}

// Save persists the cache.
func (c *Cache) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx)
}

func (c *Cache) save(ctx context.Context) error {
	_, err := c.serializer.Serialize(ctx, c.contents)
	return err
}
