// Package settings serves global key/value settings through a Redis
// read-through cache.
//
// Entries expire after a TTL, and every write path (Set, Delete) invalidates
// the affected key before returning.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix = "settings:"

	// missingValue marks a key known to be absent from the table.
	missingValue = "\x00missing"

	DefaultCacheTTL = 5 * time.Minute
)

// Service reads settings through the cache and writes them through to the
// repository. A nil Redis client disables caching.
type Service struct {
	repo     Repository
	rdb      *redis.Client
	ttl      time.Duration
	defaults Followup
}

// NewService creates a settings service. defaults supplies the followup
// values used for keys that are not present in the table.
func NewService(repo Repository, rdb *redis.Client, ttl time.Duration, defaults Followup) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{repo: repo, rdb: rdb, ttl: ttl, defaults: defaults}
}

func cacheKey(key string) string {
	return cachePrefix + key
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, cacheKey(key)).Result()
		switch {
		case err == nil:
			if v == missingValue {
				return "", ErrNotFound
			}
			return v, nil
		case !errors.Is(err, redis.Nil):
			// Redis being down must not take settings down with it.
			log.Printf("[settings] cache read %s: %v", key, err)
		}
	}

	st, err := s.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.store(ctx, key, missingValue)
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	s.store(ctx, key, st.Value)
	return st.Value, nil
}

func (s *Service) store(ctx context.Context, key, value string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(key), value, s.ttl).Err(); err != nil {
		log.Printf("[settings] cache write %s: %v", key, err)
	}
}

// Set writes value to the repository and drops the cached copy.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return s.Invalidate(ctx, key)
}

// Delete removes key from the repository and drops the cached copy.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return s.Invalidate(ctx, key)
}

// Invalidate drops the cached copy of key.
func (s *Service) Invalidate(ctx context.Context, key string) error {
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("invalidate setting %s: %w", key, err)
	}
	return nil
}
