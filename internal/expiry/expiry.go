// Package expiry resolves the expiry date encoded in an NSE F&O
// tradingsymbol, preferring the instrument catalog (authoritative) and
// falling back to regex parsing of the symbol itself when the catalog
// doesn't have the contract yet.
package expiry

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ktgogineni08-hub/nifty-trader/internal/catalog"
	"github.com/ktgogineni08-hub/nifty-trader/internal/errs"
)

// symbolPattern matches NSE F&O tradingsymbols of the form
// <UNDERLYING><DD><MMM><YY>[<STRIKE><CE|PE>][FUT], e.g. NIFTY09MAY2425000CE
// or the futures contract NIFTY09MAY24FUT.
var symbolPattern = regexp.MustCompile(`^([A-Z]+?)(\d{2})([A-Z]{3})(\d{2})(?:(\d+)(CE|PE))?(FUT)?$`)

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// expiryWeekday is the weekly expiry day per underlying; anything unlisted
// defaults to Thursday.
var expiryWeekday = map[string]time.Weekday{
	"NIFTY":     time.Thursday,
	"BANKNIFTY": time.Wednesday,
	"FINNIFTY":  time.Tuesday,
}

// Resolver resolves a tradingsymbol's expiry date.
type Resolver struct {
	catalog *catalog.Catalog
}

func New(cat *catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve returns the expiry date for symbol, catalog-first then regex
// fallback. now anchors the year-rollover rule for two-digit years.
func (r *Resolver) Resolve(symbol string, now time.Time) (time.Time, error) {
	if inst, ok := r.catalog.Lookup(symbol); ok && !inst.Expiry.IsZero() {
		return inst.Expiry, nil
	}
	return parseSymbol(symbol, now)
}

func parseSymbol(symbol string, now time.Time) (time.Time, error) {
	m := symbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return time.Time{}, errs.New(errs.ValidationError, "expiry.parseSymbol", fmt.Errorf("symbol %q does not match known F&O format", symbol))
	}

	underlying := m[1]
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, errs.New(errs.ValidationError, "expiry.parseSymbol", err)
	}
	month, ok := monthAbbrev[m[3]]
	if !ok {
		return time.Time{}, errs.New(errs.ValidationError, "expiry.parseSymbol", fmt.Errorf("unrecognized month abbreviation %q", m[3]))
	}
	yy, err := strconv.Atoi(m[4])
	if err != nil {
		return time.Time{}, errs.New(errs.ValidationError, "expiry.parseSymbol", err)
	}

	year := 2000 + yy
	// year-rollover: a parsed month earlier than the current month with
	// the same 2-digit year prefix implies next year's contract.
	if time.Month(month) < now.Month() && year == now.Year() {
		year++
	}

	_ = underlying
	return time.Date(year, month, day, 15, 30, 0, 0, now.Location()), nil
}

// NearestWeeklyExpiry returns the next occurrence of underlying's weekly
// expiry weekday on or after from, used when the catalog has no matching
// weekly contract yet but the trading loop still needs to pick a target.
func NearestWeeklyExpiry(underlying string, from time.Time) time.Time {
	wd, ok := expiryWeekday[underlying]
	if !ok {
		wd = time.Thursday
	}
	days := (int(wd) - int(from.Weekday()) + 7) % 7
	return time.Date(from.Year(), from.Month(), from.Day(), 15, 30, 0, 0, from.Location()).AddDate(0, 0, days)
}
