package workspace

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atriumhq/atrium/pkg/observability"
)

// NamespaceSource reads the authoritative workspace -> namespace mapping
type NamespaceSource interface {
	GetNamespace(ctx context.Context, workspaceID string) (string, error)
}

// Resolver maps a workspace ID to its storage namespace name. Lookup order:
// in-process LRU, shared redis cache (optional), authoritative store row,
// then pure derivation. Because the derivation is the same function used at
// provisioning time, Resolve always returns a usable name even when the
// mapping row is temporarily unreadable.
type Resolver struct {
	source  NamespaceSource
	l1      *lru.Cache[string, string]
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithRedisCache enables the shared L2 cache. Entries expire after ttl so
// replicas converge on the stored mapping.
func WithRedisCache(client *redis.Client, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.redis = client
		r.ttl = ttl
	}
}

// WithMetrics enables cache hit/miss instrumentation
func WithMetrics(metrics *observability.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a resolver with an in-process cache of l1Size entries
func NewResolver(source NamespaceSource, l1Size int, logger *observability.Logger, opts ...ResolverOption) (*Resolver, error) {
	l1, err := lru.New[string, string](l1Size)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		source: source,
		l1:     l1,
		ttl:    time.Hour,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

const redisKeyPrefix = "atrium:namespace:"

// Resolve returns the namespace name for a workspace. It never fails for a
// well-formed workspace ID: mapping lookups that miss or error degrade to
// the deterministic derivation.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string) string {
	if name, ok := r.l1.Get(workspaceID); ok {
		r.cacheHit("l1")
		return name
	}

	if r.redis != nil {
		name, err := r.redis.Get(ctx, redisKeyPrefix+workspaceID).Result()
		if err == nil && name != "" {
			r.cacheHit("redis")
			r.l1.Add(workspaceID, name)
			return name
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.WithError(err).Debug("namespace redis cache unavailable")
		}
	}

	if r.metrics != nil {
		r.metrics.NamespaceCacheMissTotal.Inc()
	}

	name, err := r.source.GetNamespace(ctx, workspaceID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.WithError(err).WithField("workspace_id", workspaceID).
				Warn("namespace mapping unreadable, using derived name")
		}
		if r.metrics != nil {
			r.metrics.NamespaceDerivedFallback.Inc()
		}
		return NamespaceFor(workspaceID)
	}

	r.l1.Add(workspaceID, name)
	if r.redis != nil {
		if err := r.redis.Set(ctx, redisKeyPrefix+workspaceID, name, r.ttl).Err(); err != nil {
			r.logger.WithError(err).Debug("failed to populate namespace redis cache")
		}
	}
	return name
}

func (r *Resolver) cacheHit(tier string) {
	if r.metrics != nil {
		r.metrics.NamespaceCacheHitsTotal.WithLabelValues(tier).Inc()
	}
}
