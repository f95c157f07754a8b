package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripscore/internal/models"
	"tripscore/pkg/cache"
	"tripscore/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Basic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	// Popular trips listing cache, keyed by route filter and limit
	CachePopularTrips(ctx context.Context, routeKey string, limit int64, trips []*models.Trip) error
	GetCachedPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error)
	InvalidatePopularTrips(ctx context.Context) error
}

// ErrCacheMiss is returned when a key is absent. Callers fall through to
// the store on a miss; any other cache error is logged and treated the
// same way.
var ErrCacheMiss = errors.New("cache miss")

type cacheService struct {
	redis      *cache.RedisCache
	logger     *logger.Logger
	keyPrefix  string
	defaultTTL time.Duration
}

func NewCacheService(redisCache *cache.RedisCache, log *logger.Logger, defaultTTL time.Duration) CacheService {
	return &cacheService{
		redis:      redisCache,
		logger:     log,
		keyPrefix:  "tripscore",
		defaultTTL: defaultTTL,
	}
}

func (s *cacheService) buildKey(parts ...string) string {
	key := s.keyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	err := s.redis.Get(ctx, key, dest)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return nil
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = s.defaultTTL
	}
	if err := s.redis.Set(ctx, key, value, expiration); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (s *cacheService) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}

func (s *cacheService) CachePopularTrips(ctx context.Context, routeKey string, limit int64, trips []*models.Trip) error {
	return s.Set(ctx, s.popularTripsKey(routeKey, limit), trips, s.defaultTTL)
}

func (s *cacheService) GetCachedPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	var trips []*models.Trip
	if err := s.Get(ctx, s.popularTripsKey(routeKey, limit), &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// InvalidatePopularTrips drops every cached popular-trips listing. Score
// writes land here, so the listing key space is cleared wholesale rather
// than tracking which route/limit combinations exist.
func (s *cacheService) InvalidatePopularTrips(ctx context.Context) error {
	keys, err := s.redis.Keys(ctx, s.buildKey("popular", "*"))
	if err != nil {
		return fmt.Errorf("failed to list popular trip cache keys: %w", err)
	}
	return s.Delete(ctx, keys...)
}

func (s *cacheService) popularTripsKey(routeKey string, limit int64) string {
	route := routeKey
	if route == "" {
		route = "all"
	}
	return s.buildKey("popular", route, fmt.Sprintf("%d", limit))
}
