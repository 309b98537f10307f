// Package cache is the response cache coordinator: a TTL-bounded cache of
// serialized read responses, invalidated wholesale on any mutation.
// Key-level invalidation across joined, filtered, paginated views is
// error-prone, so correctness wins over hit-rate.
package cache

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/sbshrey/Neighborhood-Library-Service/pkg/actor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type memoryEntry struct {
	expiresAt time.Time
	payload   []byte
}

type memoryStore struct {
	entries map[string]memoryEntry
	mu      sync.Mutex
}

func (s *memoryStore) get(key string, now time.Time) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(now) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.payload, true
}

func (s *memoryStore) set(key string, payload []byte, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{expiresAt: expiresAt, payload: payload}
}

func (s *memoryStore) clearPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// Coordinator layers an in-process TTL map with an optional Redis tier.
type Coordinator struct {
	enabled   bool
	namespace string
	ttl       time.Duration
	memory    *memoryStore
	redis     *redisTier
}

// New builds a coordinator. redisURL may be empty, which disables the
// Redis tier entirely.
func New(enabled bool, namespace string, ttlSeconds int, redisURL string) *Coordinator {
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	return &Coordinator{
		enabled:   enabled,
		namespace: namespace,
		ttl:       time.Duration(ttlSeconds) * time.Second,
		memory:    &memoryStore{entries: make(map[string]memoryEntry)},
		redis:     newRedisTier(redisURL),
	}
}

func (c *Coordinator) namespaced(key string) string {
	return c.namespace + ":" + key
}

// GetJSON fetches a cached response into out. Returns false on miss.
func (c *Coordinator) GetJSON(ctx context.Context, key string, out interface{}) bool {
	if !c.enabled {
		return false
	}
	namespaced := c.namespaced(key)
	if payload, ok := c.redis.get(ctx, namespaced); ok {
		return json.Unmarshal(payload, out) == nil
	}
	payload, ok := c.memory.get(namespaced, time.Now())
	if !ok {
		return false
	}
	return json.Unmarshal(payload, out) == nil
}

// SetJSON stores a response in both tiers.
func (c *Coordinator) SetJSON(ctx context.Context, key string, value interface{}) {
	if !c.enabled {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	namespaced := c.namespaced(key)
	c.memory.set(namespaced, payload, time.Now().Add(c.ttl))
	c.redis.set(ctx, namespaced, payload, c.ttl)
}

// InvalidateAll clears the entire namespace in both tiers.
func (c *Coordinator) InvalidateAll(ctx context.Context) {
	prefix := c.namespace + ":"
	c.memory.clearPrefix(prefix)
	c.redis.clearPrefix(ctx, prefix)
}

// BuildKey derives the cache key for a read endpoint from the endpoint
// scope, the acting identity and the normalized query string.
func BuildKey(c *gin.Context, scope string) string {
	a := actor.From(c)
	userID := uint(0)
	if a.UserID != nil {
		userID = *a.UserID
	}
	role := a.Role
	if role == "" {
		role = "anonymous"
	}
	return scope +
		"|user:" + strconv.FormatUint(uint64(userID), 10) +
		"|role:" + role +
		"|path:" + c.Request.URL.Path +
		"|query:" + sortedQuery(c.Request.URL.Query())
}

func sortedQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		entries := append([]string(nil), values[key]...)
		sort.Strings(entries)
		for _, entry := range entries {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(entry))
		}
	}
	return b.String()
}

// InvalidateOnMutation clears the whole cache namespace after any
// mutating request that completes without a server error.
func (c *Coordinator) InvalidateOnMutation() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		switch ctx.Request.Method {
		case "POST", "PATCH", "PUT", "DELETE":
			if ctx.Writer.Status() < 500 {
				c.InvalidateAll(ctx.Request.Context())
			}
		}
	}
}
