package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/circuitbreaker"
)

// redisTier is the optional shared cache backend. Every call goes through
// a circuit breaker so an unreachable Redis degrades the coordinator to
// memory-only instead of stalling requests.
type redisTier struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
}

func newRedisTier(redisURL string) *redisTier {
	tier := &redisTier{breaker: circuitbreaker.New(3, 30*time.Second)}
	if redisURL == "" {
		return tier
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Invalid cache redis URL, running memory-only: %v", err)
		return tier
	}
	tier.client = redis.NewClient(opts)
	return tier
}

func (t *redisTier) get(ctx context.Context, key string) ([]byte, bool) {
	if t.client == nil {
		return nil, false
	}
	var payload []byte
	found := false
	err := t.breaker.Do(func() error {
		raw, err := t.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// A miss is a healthy answer, not a backend failure.
			return nil
		}
		if err != nil {
			return err
		}
		payload = raw
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, false
	}
	return payload, true
}

func (t *redisTier) set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if t.client == nil {
		return
	}
	_ = t.breaker.Do(func() error {
		return t.client.Set(ctx, key, payload, ttl).Err()
	})
}

func (t *redisTier) clearPrefix(ctx context.Context, prefix string) {
	if t.client == nil {
		return
	}
	err := t.breaker.Do(func() error {
		iter := t.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := t.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		return iter.Err()
	})
	if err != nil && err != circuitbreaker.ErrOpen {
		log.Printf("Cache redis invalidation failed: %v", err)
	}
}
