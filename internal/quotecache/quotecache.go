// Package quotecache holds the latest quote per symbol behind a
// reader-writer lock: many goroutines read (risk checks, sizing, paper
// fills) while a single feed goroutine writes.
package quotecache

import (
	"context"
	"sync"
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/broker"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
)

// Cache is a TTL-bounded store of the latest quote per symbol.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]broker.Quote
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Cache{ttl: ttl, m: make(map[string]broker.Quote)}
}

// Put stores the latest quote for its symbol, overwriting any prior value.
func (c *Cache) Put(q broker.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[q.Symbol] = q
}

// Quote returns the cached quote for symbol if it exists and isn't stale.
// It satisfies broker.QuoteSource so PaperBroker can synthesize fills
// from it directly.
func (c *Cache) Quote(ctx context.Context, symbol string) (broker.Quote, error) {
	c.mu.RLock()
	q, ok := c.m[symbol]
	c.mu.RUnlock()

	if !ok {
		return broker.Quote{}, errs.New(errs.ValidationError, "quotecache.Quote", errSymbolNotCached(symbol))
	}
	if time.Since(q.Timestamp) > c.ttl {
		return broker.Quote{}, errs.New(errs.TransientBroker, "quotecache.Quote", errStaleQuote(symbol, time.Since(q.Timestamp)))
	}
	return q, nil
}

// Len reports how many symbols currently have a cached quote, for health
// reporting.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Source fetches quotes for symbols the cache can't serve from its own
// state, in a single batched round trip.
type Source interface {
	Quotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error)
}

// MGet returns the freshest quote for every requested symbol. Cache hits
// still within ttl are returned as-is; everything else (missing or
// stale) is fetched from src in one batched call, used to repopulate the
// cache, and folded into the result. The exclusive lock is held only
// while writing the fetched batch back, never for the whole call.
func (c *Cache) MGet(ctx context.Context, src Source, symbols []string) (map[string]broker.Quote, error) {
	out := make(map[string]broker.Quote, len(symbols))
	var misses []string

	now := time.Now()
	c.mu.RLock()
	for _, symbol := range symbols {
		if q, ok := c.m[symbol]; ok && now.Sub(q.Timestamp) <= c.ttl {
			out[symbol] = q
		} else {
			misses = append(misses, symbol)
		}
	}
	c.mu.RUnlock()

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := src.Quotes(ctx, misses)
	if err != nil {
		return out, errs.New(errs.TransientBroker, "quotecache.MGet", err)
	}

	c.mu.Lock()
	for symbol, q := range fetched {
		c.m[symbol] = q
		out[symbol] = q
	}
	c.mu.Unlock()

	return out, nil
}
