package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-matchmaking/internal/config"
)

const (
	likeCountTTL = time.Hour
	geoKey       = "geo:profiles"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikeCount generates Redis key for a user's like count
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

// GetLikeCount returns the cached liker count. ok is false on a cache miss.
// A hit refreshes the TTL since the user is active.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (count int64, ok bool, err error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// corrupt entry, treat as a miss
		return 0, false, nil
	}
	_ = c.Client.Expire(ctx, key, likeCountTTL).Err()
	return n, true, nil
}

// SetLikeCount stores the liker count with a fresh TTL.
func (c *RedisCache) SetLikeCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForLikeCount(userID), count, likeCountTTL).Err()
}

// InvalidateLikeCount drops cached counts so the next read goes to the DB.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userIDs ...uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.KeyForLikeCount(id))
	}
	return c.Client.Del(ctx, keys...).Err()
}

// GeoHit is a user found near a point, with its distance in kilometers.
type GeoHit struct {
	UserID     uint64
	DistanceKm float64
}

// IndexLocation adds or moves a user's point in the geo index.
func (c *RedisCache) IndexLocation(ctx context.Context, userID uint64, lng, lat float64) error {
	return c.Client.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      strconv.FormatUint(userID, 10),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// RemoveLocation drops a user from the geo index.
func (c *RedisCache) RemoveLocation(ctx context.Context, userID uint64) error {
	return c.Client.ZRem(ctx, geoKey, strconv.FormatUint(userID, 10)).Err()
}

// Nearby returns indexed users within radiusKm of (lng, lat), nearest first.
// count <= 0 means no cap.
func (c *RedisCache) Nearby(ctx context.Context, lng, lat, radiusKm float64, count int) ([]GeoHit, error) {
	q := &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}
	if count > 0 {
		q.Count = count
	}

	locs, err := c.Client.GeoRadius(ctx, geoKey, lng, lat, q).Result()
	if err != nil {
		return nil, err
	}

	hits := make([]GeoHit, 0, len(locs))
	for _, l := range locs {
		id, err := strconv.ParseUint(l.Name, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, GeoHit{UserID: id, DistanceKm: math.Round(l.Dist*100) / 100})
	}
	return hits, nil
}
