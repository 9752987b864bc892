package cache

import (
	"strings"
	"time"

	"github.com/dariaos/ota-backend/internal/model"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/golang/groupcache/singleflight"
)

type Cache[K string, V any] struct {
	cache *ristretto.Cache[K, V]
	group singleflight.Group
	ttl   time.Duration
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.cache.Get(key)
}

func (c *Cache[K, V]) ComputeIfAbsent(key K, f func() (V, error)) (*V, error) {
	v, ok := c.cache.Get(key)
	if ok {
		return &v, nil
	}
	cv, err := c.group.Do(string(key), func() (any, error) {
		r, err := f()
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r := cv.(V)
	c.cache.SetWithTTL(key, r, 1, c.ttl)
	c.cache.Wait()
	return &r, nil
}

func (c *Cache[K, V]) Delete(key K) {
	c.cache.Del(key)
}

func NewCache[K string, V any](ttl time.Duration) *Cache[K, V] {
	cache, _ := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: 500,
		MaxCost:     500,
		BufferItems: 64,
	})
	return &Cache[K, V]{
		cache: cache,
		group: singleflight.Group{},
		ttl:   ttl,
	}
}

const buildsCacheTTL = 5 * time.Minute

// BuildsCacheGroup fronts the catalog's published-build lists on the
// device update path. Every catalog mutation must evict the affected
// (codename, channel) key so decisions never run on a stale list.
type BuildsCacheGroup struct {
	PublishedBuilds *Cache[string, []model.BuildRecord]
}

func NewBuildsCacheGroup() *BuildsCacheGroup {
	return &BuildsCacheGroup{
		PublishedBuilds: NewCache[string, []model.BuildRecord](buildsCacheTTL),
	}
}

func (g *BuildsCacheGroup) Key(codename, channel string) string {
	return strings.Join([]string{codename, channel}, ":")
}

func (g *BuildsCacheGroup) Evict(codename, channel string) {
	g.PublishedBuilds.Delete(g.Key(codename, channel))
}
