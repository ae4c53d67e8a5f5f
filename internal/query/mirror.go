package query

import (
	"context"
	"encoding/json"
	"time"

	"recruit-portal/internal/common/database"
	"recruit-portal/internal/common/metrics"
)

// Mirror is a shared store that fresh query results are written through to,
// so other portal instances can seed absent keys from it.
type Mirror interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Invalidate removes key and every key below it.
	Invalidate(ctx context.Context, prefix string) error
}

const mirrorPrefix = "portal:query:"

// RedisMirror stores results under portal:query:<key>.
type RedisMirror struct {
	redis *database.RedisClient
}

func NewRedisMirror(rc *database.RedisClient) *RedisMirror {
	return &RedisMirror{redis: rc}
}

func (m *RedisMirror) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return m.redis.Get(ctx, mirrorPrefix+key)
}

func (m *RedisMirror) Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return m.redis.Set(ctx, mirrorPrefix+key, payload, ttl)
}

func (m *RedisMirror) Delete(ctx context.Context, key string) error {
	return m.redis.Del(ctx, mirrorPrefix+key)
}

func (m *RedisMirror) Invalidate(ctx context.Context, prefix string) error {
	if err := m.redis.Del(ctx, mirrorPrefix+prefix); err != nil {
		return err
	}
	_, err := m.redis.DelMatching(ctx, mirrorPrefix+prefix+"/*")
	return err
}

type mirrorEnvelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

func (c *Cache) loadMirror(ctx context.Context, key string, decode decodeFunc) (outcome, bool) {
	if decode == nil {
		return outcome{}, false
	}
	raw, ok, err := c.mirror.Load(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read mirrored query", map[string]interface{}{"key": key, "error": err.Error()})
		return outcome{}, false
	}
	if !ok {
		return outcome{}, false
	}
	var env mirrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("Ignoring corrupt mirrored query", map[string]interface{}{"key": key, "error": err.Error()})
		return outcome{}, false
	}
	v, err := decode(env.Data)
	if err != nil {
		c.logger.Warn("Ignoring undecodable mirrored query", map[string]interface{}{"key": key, "error": err.Error()})
		return outcome{}, false
	}
	metrics.QueryCacheEvents.WithLabelValues(eventMirror).Inc()
	return outcome{value: v, at: env.StoredAt}, true
}

func (c *Cache) storeMirror(ctx context.Context, key string, out outcome, opts Options) {
	data, err := json.Marshal(out.value)
	if err != nil {
		c.logger.Warn("Failed to encode query for mirror", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	payload, err := json.Marshal(mirrorEnvelope{StoredAt: out.at, Data: data})
	if err != nil {
		return
	}
	if err := c.mirror.Store(ctx, key, payload, c.staleTime(opts)); err != nil {
		c.logger.Warn("Failed to mirror query", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (c *Cache) forgetMirror(ctx context.Context, key string) {
	if err := c.mirror.Delete(ctx, key); err != nil {
		c.logger.Warn("Failed to drop superseded mirrored query", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
