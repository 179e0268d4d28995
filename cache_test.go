package miscutils

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestCache_PersistsMutations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	c, err := NewCache(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes(), "fresh contents are written right away")
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Put(ctx, "b", 2))
	require.NoError(t, c.Put(ctx, "a", "one"))
	assert.Equal(t, 3, store.Writes())

	reopened, err := NewCache(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reopened.Keys())
	v, ok := reopened.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 3, store.Writes(), "loading valid contents does not write")
}

func TestCache_Operations(t *testing.T) {
	ctx := context.Background()
	c, err := NewCache(ctx, NewMemoryStore(nil))
	require.NoError(t, err)

	assert.Equal(t, "fallback", c.GetOr("missing", "fallback"))
	assert.False(t, c.Contains("missing"))

	v, err := c.SetDefault(ctx, "k", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = c.SetDefault(ctx, "k", 20)
	require.NoError(t, err)
	assert.Equal(t, 10, v, "existing value wins")

	popped, ok, err := c.Pop(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, popped)
	assert.False(t, c.Contains("k"))

	_, ok, err = c.Pop(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(nil)

	c, err := NewCache(ctx, store, WithTTL(time.Hour), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "token", "abc"))
	assert.Equal(t, clock.now.Add(time.Hour), c.Expiry())
	assert.True(t, c.Valid())

	clock.now = clock.now.Add(30 * time.Minute)
	reopened, err := NewCache(ctx, store, WithTTL(time.Hour), WithClock(clock.Now))
	require.NoError(t, err)
	assert.True(t, reopened.Contains("token"))
	assert.True(t, reopened.Expiry().Equal(c.Expiry()), "loaded contents keep their expiry")

	clock.now = clock.now.Add(time.Hour)
	assert.False(t, reopened.Valid())

	expired, err := NewCache(ctx, store, WithTTL(time.Hour), WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, 0, expired.Len())
	assert.Equal(t, clock.now.Add(time.Hour), expired.Expiry())
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	c, err := NewCache(context.Background(), NewMemoryStore(nil))
	require.NoError(t, err)
	assert.True(t, c.Expiry().IsZero())
	assert.True(t, c.Valid())
}

func TestCache_RecoversFromForeignContents(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage bytes", func(t *testing.T) {
		store := NewMemoryStore([]byte("not a graph"))
		c, err := NewCache(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Len())
		assert.Equal(t, 1, store.Writes())
	})

	t.Run("a different value", func(t *testing.T) {
		store := NewMemoryStore(nil)
		s, err := NewSerializer(store)
		require.NoError(t, err)
		_, err = s.Serialize(ctx, []any{"not", "a", "cache"})
		require.NoError(t, err)

		c, err := NewCache(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_StorageFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	store.ReadErr = errors.New("unreachable")

	_, err := NewCache(ctx, store)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	store.ReadErr = nil
	c, err := NewCache(ctx, store)
	require.NoError(t, err)

	store.WriteErr = errors.New("read-only")
	err = c.Put(ctx, "k", 1)
	assert.True(t, IsStorageError(err))
}

func TestCache_UnserializableValuesStayInMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	c, err := NewCache(ctx, store)
	require.NoError(t, err)

	sock := &socket{fd: 5}
	require.NoError(t, c.Put(ctx, "conn", sock))
	v, _ := c.Get("conn")
	assert.Same(t, sock, v)

	reopened, err := NewCache(ctx, store)
	require.NoError(t, err)
	v, ok := reopened.Get("conn")
	require.True(t, ok)
	assert.IsType(t, &Lost{}, v)
}

func TestCache_FileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.pkl")

	c, err := NewCache(ctx, NewFileStore(path), WithSerializerOptions(WithCodecType(CodecJSON)))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "n", 1))

	s, err := NewSerializer(NewFileStore(path), WithCodecType(CodecJSON))
	require.NoError(t, err)
	v, err := s.Deserialize(ctx)
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, v, "JSON decodes the cache contents as a plain object")
}

func TestNewCacheFromConfig(t *testing.T) {
	ctx := context.Background()
	c, err := NewCacheFromConfig(ctx, NewMemoryStore(nil), Config{CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.False(t, c.Expiry().IsZero())

	_, err = NewCacheFromConfig(ctx, NewMemoryStore(nil), Config{CacheTTL: -time.Minute})
	assert.True(t, IsConfigurationError(err))
}
