// Package quote serves market and risk snapshots to the evaluation path,
// caching fetches with a soft TTL and refusing data past a hard staleness
// ceiling.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/you/snipebot/internal/domain"
)

// Cache implements domain.QuoteSource. Entries younger than TTL are served
// directly. Older entries trigger a refresh; concurrent refreshes for the
// same token collapse into a single upstream fetch. When a refresh fails,
// the previous entry is served as long as it is younger than MaxStale;
// past that ceiling the cache reports domain.ErrDataUnavailable.
type Cache struct {
	quotes   domain.QuoteFetcher
	risks    domain.RiskFetcher
	ttl      time.Duration
	maxStale time.Duration

	snapshots domain.QuoteSnapshotCache // optional write-through, may be nil
	logger    *slog.Logger
	now       func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	quoteData map[string]domain.Quote
	riskData  map[string]domain.RiskReport
}

// Options configures optional Cache collaborators.
type Options struct {
	// Snapshots receives a write-through copy of every successful fetch.
	Snapshots domain.QuoteSnapshotCache
	// Now overrides the clock; used in tests.
	Now func() time.Time
}

// NewCache creates a Cache over the given fetchers.
func NewCache(quotes domain.QuoteFetcher, risks domain.RiskFetcher, ttl, maxStale time.Duration, logger *slog.Logger, opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		quotes:    quotes,
		risks:     risks,
		ttl:       ttl,
		maxStale:  maxStale,
		snapshots: opts.Snapshots,
		logger:    logger.With(slog.String("component", "quote_cache")),
		now:       now,
		quoteData: make(map[string]domain.Quote),
		riskData:  make(map[string]domain.RiskReport),
	}
}

// Quote returns a market snapshot for the token, refreshing it when the
// cached entry is older than the TTL.
func (c *Cache) Quote(ctx context.Context, tokenAddress string) (domain.Quote, error) {
	now := c.now()

	c.mu.RLock()
	cached, ok := c.quoteData[tokenAddress]
	c.mu.RUnlock()
	if ok && cached.Age(now) < c.ttl {
		return cached, nil
	}

	v, err, _ := c.group.Do("quote:"+tokenAddress, func() (any, error) {
		// Another waiter may have refreshed while we queued.
		c.mu.RLock()
		fresh, ok := c.quoteData[tokenAddress]
		c.mu.RUnlock()
		if ok && fresh.Age(c.now()) < c.ttl {
			return fresh, nil
		}

		q, err := c.quotes.FetchQuote(ctx, tokenAddress)
		if err != nil {
			return domain.Quote{}, err
		}
		if q.FetchedAt.IsZero() {
			q.FetchedAt = c.now()
		}

		c.mu.Lock()
		c.quoteData[tokenAddress] = q
		c.mu.Unlock()

		if c.snapshots != nil {
			if serr := c.snapshots.SetQuote(ctx, q); serr != nil {
				c.logger.Warn("snapshot write-through failed",
					slog.String("token", tokenAddress),
					slog.String("error", serr.Error()))
			}
		}
		return q, nil
	})
	if err == nil {
		return v.(domain.Quote), nil
	}

	// Refresh failed: fall back to the stale entry if still within the
	// hard ceiling.
	if ok && cached.Age(c.now()) <= c.maxStale {
		c.logger.Warn("serving stale quote after fetch failure",
			slog.String("token", tokenAddress),
			slog.Duration("age", cached.Age(c.now())),
			slog.String("error", err.Error()))
		return cached, nil
	}

	return domain.Quote{}, fmt.Errorf("quote: %s: %w: %v", tokenAddress, domain.ErrDataUnavailable, err)
}

// Risk returns a risk snapshot for the token with the same freshness rules
// as Quote.
func (c *Cache) Risk(ctx context.Context, tokenAddress string) (domain.RiskReport, error) {
	now := c.now()

	c.mu.RLock()
	cached, ok := c.riskData[tokenAddress]
	c.mu.RUnlock()
	if ok && now.Sub(cached.FetchedAt) < c.ttl {
		return cached, nil
	}

	v, err, _ := c.group.Do("risk:"+tokenAddress, func() (any, error) {
		c.mu.RLock()
		fresh, ok := c.riskData[tokenAddress]
		c.mu.RUnlock()
		if ok && c.now().Sub(fresh.FetchedAt) < c.ttl {
			return fresh, nil
		}

		r, err := c.risks.FetchRisk(ctx, tokenAddress)
		if err != nil {
			return domain.RiskReport{}, err
		}
		if r.FetchedAt.IsZero() {
			r.FetchedAt = c.now()
		}

		c.mu.Lock()
		c.riskData[tokenAddress] = r
		c.mu.Unlock()

		if c.snapshots != nil {
			if serr := c.snapshots.SetRisk(ctx, r); serr != nil {
				c.logger.Warn("snapshot write-through failed",
					slog.String("token", tokenAddress),
					slog.String("error", serr.Error()))
			}
		}
		return r, nil
	})
	if err == nil {
		return v.(domain.RiskReport), nil
	}

	if ok && c.now().Sub(cached.FetchedAt) <= c.maxStale {
		c.logger.Warn("serving stale risk report after fetch failure",
			slog.String("token", tokenAddress),
			slog.Duration("age", c.now().Sub(cached.FetchedAt)),
			slog.String("error", err.Error()))
		return cached, nil
	}

	return domain.RiskReport{}, fmt.Errorf("quote: risk %s: %w: %v", tokenAddress, domain.ErrDataUnavailable, err)
}

// Invalidate drops any cached entries for the token, forcing the next read
// to hit the upstream fetchers.
func (c *Cache) Invalidate(tokenAddress string) {
	c.mu.Lock()
	delete(c.quoteData, tokenAddress)
	delete(c.riskData, tokenAddress)
	c.mu.Unlock()
}

// Compile-time interface check.
var _ domain.QuoteSource = (*Cache)(nil)
