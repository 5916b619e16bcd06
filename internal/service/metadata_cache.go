package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// MetadataCache 链接元数据缓存
type MetadataCache interface {
	Get(ctx context.Context, url string) (*URLMetadata, bool)
	Set(ctx context.Context, url string, meta *URLMetadata)
}

// MemoryMetadataCache 进程内缓存，不淘汰，随进程生命周期存在
type MemoryMetadataCache struct {
	mu    sync.RWMutex
	items map[string]URLMetadata
}

func NewMemoryMetadataCache() *MemoryMetadataCache {
	return &MemoryMetadataCache{items: make(map[string]URLMetadata)}
}

func (c *MemoryMetadataCache) Get(ctx context.Context, url string) (*URLMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.items[url]
	if !ok {
		return nil, false
	}
	return &m, true
}

func (c *MemoryMetadataCache) Set(ctx context.Context, url string, meta *URLMetadata) {
	if meta == nil {
		return
	}
	c.mu.Lock()
	c.items[url] = *meta
	c.mu.Unlock()
}

func (c *MemoryMetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

const metadataKeyPrefix = "course_studio:url_meta:"

// RedisMetadataCache 多实例共享，按 TTL 过期
type RedisMetadataCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisMetadataCache(client *redis.Client, ttl time.Duration) *RedisMetadataCache {
	return &RedisMetadataCache{Client: client, TTL: ttl}
}

func (c *RedisMetadataCache) Get(ctx context.Context, url string) (*URLMetadata, bool) {
	raw, err := c.Client.Get(ctx, metadataKeyPrefix+url).Bytes()
	if err != nil {
		return nil, false
	}
	var m URLMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *RedisMetadataCache) Set(ctx context.Context, url string, meta *URLMetadata) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	c.Client.Set(ctx, metadataKeyPrefix+url, raw, c.TTL)
}
