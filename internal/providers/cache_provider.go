package providers

import (
	"freedomwall/internal/structures"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
)

// CacheProviderInterface holds serialized query responses.
type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// QueryCacheKey names one equality query against one revision of a
// collection. An append bumps the revision, so stale entries are never read
// again and simply age out.
func QueryCacheKey(collection string, revision uint64, field, equals string) string {
	return "query:" + collection + ":" + strconv.FormatUint(revision, 10) + ":" + field + ":" + equals
}

type CacheProvider struct {
	cache      *freecache.Cache
	ttlSeconds int
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Query cache disabled")
		return &noopCache{}
	}

	size := conf.Cache.Size << 20
	ttl := max(int(conf.Cache.TTL/time.Second), 1)
	logger.Infof(TypeApp, "Query cache enabled: %s, entries live %ds", humanize.IBytes(uint64(size)), ttl)

	return &CacheProvider{
		cache:      freecache.NewCache(size),
		ttlSeconds: ttl,
	}
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set drops responses too large for the cache instead of failing the request.
func (c *CacheProvider) Set(key string, value []byte) {
	_ = c.cache.Set([]byte(key), value, c.ttlSeconds)
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)      {}
