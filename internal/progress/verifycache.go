package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-learn/internal/platform/cache"
)

// VerifyEntry is a cached verification outcome. A revoked entry marks an id
// that no longer verifies, so a result read before the revocation cannot be
// cached over it.
type VerifyEntry struct {
	Revoked bool            `json:"revoked,omitempty"`
	Info    CertificateInfo `json:"info"`
}

// VerifyCache caches public certificate verification results. Misses and
// failures fall through to the store.
type VerifyCache interface {
	Get(ctx context.Context, certificateID string) (VerifyEntry, bool)
	// Add stores info unless the id already has an entry or a revocation.
	Add(ctx context.Context, certificateID string, info CertificateInfo)
	// Revoke replaces any entry for the ids with a revocation marker.
	Revoke(ctx context.Context, certificateIDs ...string)
}

type nopVerifyCache struct{}

func (nopVerifyCache) Get(context.Context, string) (VerifyEntry, bool) {
	return VerifyEntry{}, false
}

func (nopVerifyCache) Add(context.Context, string, CertificateInfo) {}

func (nopVerifyCache) Revoke(context.Context, ...string) {}

const verifyKeyPrefix = "cert:verify:"

// RedisVerifyCache stores verification results in Redis with a TTL.
// Revocation markers live for the same TTL.
type RedisVerifyCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisVerifyCache creates a verify cache backed by c.
func NewRedisVerifyCache(c *cache.Cache, ttl time.Duration) *RedisVerifyCache {
	return &RedisVerifyCache{cache: c, ttl: ttl}
}

func (r *RedisVerifyCache) Get(ctx context.Context, certificateID string) (VerifyEntry, bool) {
	var entry VerifyEntry
	ok, err := r.cache.GetJSON(ctx, verifyKeyPrefix+certificateID, &entry)
	if err != nil {
		slog.Warn("verify cache read failed", "certificate_id", certificateID, "error", err)
		return VerifyEntry{}, false
	}
	return entry, ok
}

func (r *RedisVerifyCache) Add(ctx context.Context, certificateID string, info CertificateInfo) {
	if _, err := r.cache.AddJSON(ctx, verifyKeyPrefix+certificateID, VerifyEntry{Info: info}, r.ttl); err != nil {
		slog.Warn("verify cache write failed", "certificate_id", certificateID, "error", err)
	}
}

func (r *RedisVerifyCache) Revoke(ctx context.Context, certificateIDs ...string) {
	for _, id := range certificateIDs {
		if err := r.cache.SetJSON(ctx, verifyKeyPrefix+id, VerifyEntry{Revoked: true}, r.ttl); err != nil {
			slog.Warn("verify cache revocation failed", "certificate_id", id, "error", err)
		}
	}
}
