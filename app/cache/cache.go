package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

const (
	keyPrefix = "bruinbrief:"

	ListTTL    = 5 * time.Minute
	SummaryTTL = 10 * time.Minute
	ArticleTTL = 10 * time.Minute
	FeedTTL    = 5 * time.Minute
)

// Cache stores JSON-encoded read models. Misses are reported as found == false with a nil error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Health(ctx context.Context) map[string]any
	Close() error
}

// Key builders

func ArticlesKey(limit int) string {
	return fmt.Sprintf("%sarticles:recent:%d", keyPrefix, limit)
}

func TodayKey(date string) string {
	return fmt.Sprintf("%sarticles:today:%s", keyPrefix, date)
}

func PastKey(date string, limit int) string {
	return fmt.Sprintf("%sarticles:past:%s:%d", keyPrefix, date, limit)
}

func ArticleKey(id string) string {
	return fmt.Sprintf("%sarticle:%s", keyPrefix, id)
}

func SummaryKey(date string) string {
	return fmt.Sprintf("%ssummary:%s", keyPrefix, date)
}

func StatsKey() string {
	return keyPrefix + "stats"
}

// FeedKey hashes the public base URL so feeds rendered for different hosts do not collide
func FeedKey(baseURL string) string {
	hash := sha256.Sum256([]byte(baseURL))
	return fmt.Sprintf("%sfeed:%x", keyPrefix, hash[:8])
}

// ContentPrefix covers every key derived from articles or summaries
func ContentPrefix() string {
	return keyPrefix
}

// NoopCache never stores anything. Used when Redis is not configured or unreachable.
type NoopCache struct{}

var _ Cache = NoopCache{}

func (NoopCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) { return false, nil }

func (NoopCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (NoopCache) Delete(ctx context.Context, keys ...string) error { return nil }

func (NoopCache) DeletePrefix(ctx context.Context, prefix string) (int, error) { return 0, nil }

func (NoopCache) Health(ctx context.Context) map[string]any {
	return map[string]any{"status": "disabled", "type": "noop"}
}

func (NoopCache) Close() error { return nil }
