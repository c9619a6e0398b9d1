// Package catalog maintains the daily instrument master: NSE F&O contracts
// keyed by tradingsymbol and by token, with a fallback for symbols that
// differ from a catalog symbol only in whitespace or letter case.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktgogineni08-hub/nifty-trader/internal/domain"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
)

// Source loads the full instrument list from the broker/exchange once per
// refresh cycle.
type Source interface {
	LoadInstruments(ctx context.Context) ([]domain.Instrument, error)
}

// Catalog holds the latest instrument master in memory, rebuilt wholesale
// on each refresh rather than patched incrementally.
type Catalog struct {
	mu         sync.RWMutex
	bySymbol   map[string]domain.Instrument
	byToken    map[int64]domain.Instrument
	source     Source
	log        zerolog.Logger
	lastLoaded time.Time
}

func New(source Source, log zerolog.Logger) *Catalog {
	return &Catalog{
		bySymbol: make(map[string]domain.Instrument),
		byToken:  make(map[int64]domain.Instrument),
		source:   source,
		log:      log.With().Str("component", "catalog").Logger(),
	}
}

// Refresh reloads the full instrument set. Call once daily before market
// open; a partial/failed refresh leaves the previous catalog in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	instruments, err := c.source.LoadInstruments(ctx)
	if err != nil {
		return errs.New(errs.TransientBroker, "catalog.Refresh", err)
	}

	bySymbol := make(map[string]domain.Instrument, len(instruments))
	byToken := make(map[int64]domain.Instrument, len(instruments))
	for _, inst := range instruments {
		bySymbol[inst.Symbol] = inst
		byToken[inst.Token] = inst
	}

	c.mu.Lock()
	c.bySymbol = bySymbol
	c.byToken = byToken
	c.lastLoaded = time.Now()
	c.mu.Unlock()

	c.log.Info().Int("count", len(instruments)).Msg("instrument catalog refreshed")
	return nil
}

// Lookup returns the instrument for an exact tradingsymbol match.
func (c *Catalog) Lookup(symbol string) (domain.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.bySymbol[symbol]
	return inst, ok
}

// ByToken returns the instrument for an exact token match.
func (c *Catalog) ByToken(token int64) (domain.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.byToken[token]
	return inst, ok
}

// Resolve looks up symbol exactly first; on a miss, it falls back to
// comparing symbols with all whitespace removed and letters upper-cased, and
// logs the substitution so it's auditable. Symbols that differ in any other
// way (suffixes, renamed underlyings, another date format) do not resolve.
func (c *Catalog) Resolve(symbol string) (domain.Instrument, error) {
	if inst, ok := c.Lookup(symbol); ok {
		return inst, nil
	}

	c.log.Warn().Str("symbol", symbol).Msg("exact catalog lookup missed, trying fuzzy resolve")

	target := normalize(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best domain.Instrument
	found := false
	for candidate, inst := range c.bySymbol {
		if normalize(candidate) == target {
			best = inst
			found = true
			break
		}
	}
	if !found {
		return domain.Instrument{}, errs.New(errs.ValidationError, "catalog.Resolve", fmt.Errorf("no instrument matches %q", symbol))
	}

	c.log.Info().Str("requested", symbol).Str("resolved", best.Symbol).Msg("fuzzy-resolved symbol")
	return best, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// Age reports how long ago the catalog was last refreshed, for health checks.
func (c *Catalog) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastLoaded.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(c.lastLoaded)
}
