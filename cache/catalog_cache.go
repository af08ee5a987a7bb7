package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EmberFM/model"

	"github.com/redis/go-redis/v9"
)

// catalogKey 热度榜在Redis中的键
const catalogKey = "catalog:hot"

// catalogTTL 榜单过期时间，防止陈旧数据无限存活
const catalogTTL = 24 * time.Hour

// CatalogCache keeps the hot-track list in a Redis sorted set scored by
// heat, so dashboard reads skip MySQL entirely.
type CatalogCache struct {
	client *redis.Client
}

// NewCatalogCache wraps a connected client.
func NewCatalogCache(client *redis.Client) *CatalogCache {
	return &CatalogCache{client: client}
}

// Refresh replaces the cached catalog with the given list.
func (c *CatalogCache) Refresh(ctx context.Context, tracks []model.Track) error {
	members := make([]redis.Z, 0, len(tracks))
	for _, t := range tracks {
		if t.Placeholder {
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal track %s: %w", t.ID, err)
		}
		members = append(members, redis.Z{
			Score:  float64(t.HeatScore),
			Member: data,
		})
	}

	// 整体替换：先删后写，避免残留已下架的曲目
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, catalogKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, catalogKey, members...)
		pipe.Expire(ctx, catalogKey, catalogTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh catalog cache: %w", err)
	}
	return nil
}

// Hottest returns up to limit tracks, hottest first. A cache miss comes
// back as an empty slice, never an error.
func (c *CatalogCache) Hottest(ctx context.Context, limit int) ([]model.Track, error) {
	raw, err := c.client.ZRevRange(ctx, catalogKey, 0, int64(limit-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	tracks := make([]model.Track, 0, len(raw))
	for _, item := range raw {
		var t model.Track
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}
