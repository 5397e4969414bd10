package docxgen

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepareFunc(t *testing.T, calls *int) func() (*Template, error) {
	return func() (*Template, error) {
		*calls++
		return testEngine().PrepareBytes(t.Context(), "cached", newTestDocx(t, para("{{name}}")))
	}
}

func TestTemplateCache_Basic(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	calls := 0

	first, err := cache.GetOrPrepare("key", prepareFunc(t, &calls))
	require.NoError(t, err)
	second, err := cache.GetOrPrepare("key", prepareFunc(t, &calls))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Size())
}

func TestTemplateCache_ErrorsAreNotCached(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	_, err := cache.GetOrPrepare("key", func() (*Template, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, 0, cache.Size())
}

func TestTemplateCache_Eviction(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 2})
	calls := 0
	for _, key := range []string{"key1", "key2"} {
		_, err := cache.GetOrPrepare(key, prepareFunc(t, &calls))
		require.NoError(t, err)
	}

	// Touch key1 so key2 becomes the least recently used.
	_, ok := cache.Get("key1")
	require.True(t, ok)

	_, err := cache.GetOrPrepare("key3", prepareFunc(t, &calls))
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Size())
	_, ok = cache.Get("key2")
	assert.False(t, ok)
	_, ok = cache.Get("key1")
	assert.True(t, ok)
	_, ok = cache.Get("key3")
	assert.True(t, ok)
}

func TestTemplateCache_TTL(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10, TTL: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	calls := 0
	_, err := cache.GetOrPrepare("ttl-key", prepareFunc(t, &calls))
	require.NoError(t, err)

	_, ok := cache.Get("ttl-key")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("ttl-key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

func TestTemplateCache_Disabled(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 0})
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := cache.GetOrPrepare("key", prepareFunc(t, &calls))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Size())
}

func TestTemplateCache_RemoveAndClear(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	tmpl, err := testEngine().PrepareBytes(t.Context(), "t", newTestDocx(t, para("x")))
	require.NoError(t, err)

	cache.Set("a", tmpl)
	cache.Set("b", tmpl)
	cache.Set("b", tmpl)
	assert.Equal(t, 2, cache.Size())

	cache.Remove("a")
	assert.Equal(t, 1, cache.Size())

	require.NoError(t, cache.Close())
	assert.Equal(t, 0, cache.Size())
}

func TestTemplateCache_ConcurrentAccess(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 5})
	tmpl, err := testEngine().PrepareBytes(t.Context(), "t", newTestDocx(t, para("x")))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", id%7)
			cache.Set(key, tmpl)
			cache.Get(key)
			if id%5 == 0 {
				cache.Remove(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Size(), 5)
}
