package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/configs"
)

// CacheClient memoizes Scorer responses by prompt hash, adapted from the
// teacher's Redis cache client (formerly backing a Redis-streams queue,
// now backing response lookups since Kafka is the bus).
type CacheClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheClient connects to Redis for response caching.
func NewCacheClient(cfg configs.RedisConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &CacheClient{client: client, ttl: cfg.CacheTTL}, nil
}

// Close closes the underlying redis client.
func (c *CacheClient) Close() error {
	return c.client.Close()
}

// promptKey hashes the prompt so cache keys stay a fixed, bounded size
// regardless of prompt length.
func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "scorer:response:" + hex.EncodeToString(sum[:])
}

// Get returns the cached Response for prompt, if one is still fresh.
func (c *CacheClient) Get(ctx context.Context, prompt string) (Response, bool, error) {
	val, err := c.client.Get(ctx, promptKey(prompt)).Result()
	if err == redis.Nil {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, fmt.Errorf("cache get failed: %w", err)
	}

	var r Response
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return Response{}, false, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return r, true, nil
}

// Set caches resp for prompt with the configured TTL.
func (c *CacheClient) Set(ctx context.Context, prompt string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response for cache: %w", err)
	}
	if err := c.client.Set(ctx, promptKey(prompt), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// CachingScorer wraps a Scorer with a read-through response cache.
type CachingScorer struct {
	inner Scorer
	cache *CacheClient
}

// NewCachingScorer returns a Scorer that checks cache before calling inner,
// and populates cache after a successful call.
func NewCachingScorer(inner Scorer, cache *CacheClient) *CachingScorer {
	return &CachingScorer{inner: inner, cache: cache}
}

func (s *CachingScorer) Score(ctx context.Context, prompt string) (Response, error) {
	if cached, ok, err := s.cache.Get(ctx, prompt); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("scorer cache read failed, falling through to live call")
	}

	resp, err := s.inner.Score(ctx, prompt)
	if err != nil {
		return Response{}, err
	}

	if err := s.cache.Set(ctx, prompt, resp); err != nil {
		log.Warn().Err(err).Msg("scorer cache write failed")
	}

	return resp, nil
}
