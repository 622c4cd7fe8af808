package nominatim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/geocache"
	"github.com/lmarchau/provider-atlas/internal/observability"
)

// RetryPolicy bounds throttling retries for a single dispatched query.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy keeps a throttled session short: three passes over the
// strategies with delays of 500ms then 1s between them.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Resolver is the rate-limited geocode client. It consults the cache before
// the network, serializes dispatch through a limiter enforcing the service's
// ~1 req/s courtesy limit, coalesces concurrent lookups of the same
// normalized query, walks transport strategies with bounded backoff on
// throttling, and falls through the query variants until one resolves.
type Resolver struct {
	cache      *geocache.Cache
	client     *Client
	endpoints  []Endpoint
	normalizer *domain.Normalizer
	limiter    *rate.Limiter
	policy     RetryPolicy
	group      singleflight.Group
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewResolver wires a resolver. minInterval is the mandatory spacing between
// dispatched network calls.
func NewResolver(
	cache *geocache.Cache,
	client *Client,
	endpoints []Endpoint,
	normalizer *domain.Normalizer,
	minInterval time.Duration,
	policy RetryPolicy,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Resolver {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Resolver{
		cache:      cache,
		client:     client,
		endpoints:  endpoints,
		normalizer: normalizer,
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		policy:     policy,
		logger:     logger,
		metrics:    metrics,
	}
}

// Resolve implements domain.Resolver. A nil result with nil error means the
// address is currently unresolvable; callers skip marker placement.
func (r *Resolver) Resolve(ctx context.Context, address string) (*domain.Coordinates, error) {
	key := r.normalizer.Normalize(address)
	if key == "" {
		return nil, nil
	}

	if coord, ok := r.cache.Get(key); ok {
		return coord, nil
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		// An earlier flight for this key may have populated the cache
		// between our miss and joining the group.
		if coord, ok := r.cache.Get(key); ok {
			return coord, nil
		}
		start := time.Now()
		coord, err := r.resolveUncached(ctx, address, key)
		r.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
		return coord, err
	})
	if shared {
		r.metrics.ResolveCoalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	coord, _ := v.(*domain.Coordinates)
	return coord, nil
}

// resolveUncached walks the query variants, most precise first. The first
// usable result is cached under the original normalized key, whichever
// variant produced it.
func (r *Resolver) resolveUncached(ctx context.Context, address, key string) (*domain.Coordinates, error) {
	for _, query := range r.normalizer.QueryVariants(address) {
		coord, err := r.lookup(ctx, query)
		if err != nil {
			return nil, err
		}
		if coord != nil {
			r.cache.Put(key, *coord)
			return coord, nil
		}
	}
	r.logger.Warn("address unresolvable after all variants", "query", key)
	return nil, nil
}

// lookup dispatches one query through the transport strategies. A pass that
// completes without throttling and without a result means the query has
// nothing to give; throttling triggers a backoff delay before the next pass.
func (r *Resolver) lookup(ctx context.Context, query string) (*domain.Coordinates, error) {
	delay := r.policy.BaseDelay

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		throttled := false

		for _, ep := range r.endpoints {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			coord, err := r.client.Search(ctx, ep, query)
			switch {
			case errors.Is(err, ErrThrottled):
				r.logger.Warn("geocoder throttled, backing off",
					"strategy", ep.Name, "attempt", attempt, "delay", delay)
				throttled = true
			case err != nil:
				r.logger.Warn("geocode strategy failed",
					"strategy", ep.Name, "query", query, "error", err)
				continue
			case coord != nil:
				return coord, nil
			}
			if throttled {
				break
			}
			// Empty result from this strategy; the next one may know better.
		}

		if !throttled {
			return nil, nil
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		if !sleepWithContext(ctx, delay) {
			return nil, ctx.Err()
		}
		delay = nextDelay(delay, r.policy.MaxDelay)
	}

	r.logger.Warn("geocoder still throttling after max attempts", "query", query)
	return nil, nil
}

func nextDelay(current, maxDelay time.Duration) time.Duration {
	next := current * 2
	if next > maxDelay {
		return maxDelay
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-domain.Clock().After(d):
		return true
	}
}
