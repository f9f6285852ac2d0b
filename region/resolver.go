package region

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/internal/transport"
)

// DefaultCacheLifetime is how long a query answer stays cached.
const DefaultCacheLifetime = time.Hour

// ResolverConfig controls a Resolver.
type ResolverConfig struct {
	// UcURLs are the configuration service endpoints, tried in order.
	UcURLs []string

	// Client sends the query requests.
	Client *transport.Client

	// Health is the shared endpoint health table. A private table is
	// created when nil.
	Health *HealthTable

	// CacheLifetime bounds how long a query answer is reused.
	CacheLifetime time.Duration

	// RsOverride, when set, replaces the object metadata endpoints of
	// every resolved region.
	RsOverride string
}

// Resolver maps (access key, bucket) pairs to Regions by querying the
// configuration service, and picks healthy endpoints for upload attempts.
// Concurrent queries for the same bucket collapse into one request.
type Resolver struct {
	cfg    ResolverConfig
	health *HealthTable

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	regions []*Region
	expires time.Time
}

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.CacheLifetime == 0 {
		cfg.CacheLifetime = DefaultCacheLifetime
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthTable(HealthTableConfig{})
	}
	return &Resolver{
		cfg:    cfg,
		health: health,
		cache:  make(map[string]cacheEntry),
	}
}

// Health returns the endpoint health table the resolver consults.
func (r *Resolver) Health() *HealthTable {
	return r.health
}

// Query returns the Regions hosting bucket, ordered by preference. Answers
// are cached; concurrent callers for the same bucket share one request.
// Configuration endpoints that fail at the transport level are frozen and
// the next one is tried.
func (r *Resolver) Query(ctx context.Context, accessKey, bucket string) ([]*Region, error) {
	key := accessKey + ":" + bucket

	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.regions, nil
	}

	regions, err, _ := r.group.Do(key, func() (any, error) {
		regions, err := r.query(ctx, accessKey, bucket)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = cacheEntry{regions: regions, expires: time.Now().Add(r.cfg.CacheLifetime)}
		r.mu.Unlock()
		return regions, nil
	})
	if err != nil {
		return nil, err
	}
	return regions.([]*Region), nil
}

func (r *Resolver) query(ctx context.Context, accessKey, bucket string) ([]*Region, error) {
	candidates := r.health.Choose(r.cfg.UcURLs)
	if len(candidates) == 0 {
		return nil, errors.NewError("query", errors.ErrNoEndpointAvailable)
	}

	var lastErr error
	for _, ucURL := range candidates {
		queryURL := fmt.Sprintf("%s/v2/query?ak=%s&bucket=%s",
			ucURL, url.QueryEscape(accessKey), url.QueryEscape(bucket))

		var result queryResponse
		err := r.cfg.Client.GetJSON(ctx, queryURL, &result)
		if err == nil {
			regions := result.toRegions()
			if len(regions) == 0 {
				return nil, errors.NewError("query", errors.ErrInvalidResponse).
					WithURL(queryURL).
					WithMessage("no hosts in query answer")
			}
			if r.cfg.RsOverride != "" {
				for _, reg := range regions {
					reg.RsHTTPURLs = []string{r.cfg.RsOverride}
					reg.RsHTTPSURLs = []string{r.cfg.RsOverride}
				}
			}
			return regions, nil
		}
		if !errors.IsTransport(err) {
			return nil, err
		}
		_ = r.health.Freeze(ucURL)
		lastErr = err
	}
	return nil, lastErr
}

// Invalidate drops the cached answer for bucket, forcing the next Query to
// hit the configuration service again.
func (r *Resolver) Invalidate(accessKey, bucket string) {
	r.mu.Lock()
	delete(r.cache, accessKey+":"+bucket)
	r.mu.Unlock()
}

// SelectCandidate picks the first healthy endpoint from urls that is not in
// exclude. Exhausted candidate sets report ErrNoEndpointAvailable.
func (r *Resolver) SelectCandidate(urls []string, exclude map[string]bool) (string, error) {
	remaining := urls
	if len(exclude) > 0 {
		remaining = make([]string, 0, len(urls))
		for _, u := range urls {
			if !exclude[u] {
				remaining = append(remaining, u)
			}
		}
	}

	usable := r.health.Choose(remaining)
	if len(usable) == 0 {
		return "", errors.ErrNoEndpointAvailable
	}
	return usable[0], nil
}

// MarkFailed freezes the endpoint serving rawURL after a transport failure.
func (r *Resolver) MarkFailed(rawURL string) {
	_ = r.health.Freeze(rawURL)
}
