// Package marketclock tracks the NSE trading session state machine:
// CLOSED_HOLIDAY, PRE_OPEN, OPEN, PRE_CLOSE, CLOSED and EXPIRY_FLATTEN,
// all in Asia/Kolkata time.
package marketclock

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// State is one of the six session phases.
type State string

const (
	ClosedHoliday State = "CLOSED_HOLIDAY"
	PreOpen       State = "PRE_OPEN"
	Open          State = "OPEN"
	PreClose      State = "PRE_CLOSE"
	Closed        State = "CLOSED"
	ExpiryFlatten State = "EXPIRY_FLATTEN"
)

// Session defines the daily trading window, pre-open lead time, and how
// many minutes before close the flatten window begins.
type Session struct {
	OpenHour, OpenMinute   int
	CloseHour, CloseMinute int
	PreOpenLead            time.Duration
	PreCloseLead           time.Duration
	FlattenBeforeClose     time.Duration
}

// DefaultNSESession is the regular NSE equity/F&O cash-market session:
// 09:15-15:30 IST, 15 minute pre-open, 1 minute pre-close warning.
func DefaultNSESession() Session {
	return Session{
		OpenHour: 9, OpenMinute: 15,
		CloseHour: 15, CloseMinute: 30,
		PreOpenLead:        15 * time.Minute,
		PreCloseLead:       1 * time.Minute,
		FlattenBeforeClose: 15 * time.Minute,
	}
}

// Clock evaluates session state against the configured holiday calendar.
type Clock struct {
	loc      *time.Location
	session  Session
	holidays map[string]bool // "2026-01-26" style keys
	log      zerolog.Logger
}

func New(holidays []time.Time, session Session, log zerolog.Logger) (*Clock, error) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, err
	}
	h := make(map[string]bool, len(holidays))
	for _, d := range holidays {
		h[d.In(loc).Format("2006-01-02")] = true
	}
	return &Clock{loc: loc, session: session, holidays: h, log: log.With().Str("component", "marketclock").Logger()}, nil
}

// Now returns the current time in Asia/Kolkata.
func (c *Clock) Now() time.Time { return time.Now().In(c.loc) }

func (c *Clock) isHoliday(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || c.holidays[t.Format("2006-01-02")]
}

// State evaluates the session phase at t (must already be in IST, use Now()).
func (c *Clock) State(t time.Time) State {
	if c.isHoliday(t) {
		return ClosedHoliday
	}

	openAt := time.Date(t.Year(), t.Month(), t.Day(), c.session.OpenHour, c.session.OpenMinute, 0, 0, c.loc)
	closeAt := time.Date(t.Year(), t.Month(), t.Day(), c.session.CloseHour, c.session.CloseMinute, 0, 0, c.loc)
	preOpenAt := openAt.Add(-c.session.PreOpenLead)
	preCloseAt := closeAt.Add(-c.session.PreCloseLead)
	flattenAt := closeAt.Add(-c.session.FlattenBeforeClose)

	switch {
	case t.Before(preOpenAt):
		return Closed
	case t.Before(openAt):
		return PreOpen
	case t.Before(flattenAt):
		return Open
	case t.Before(preCloseAt):
		return ExpiryFlatten
	case t.Before(closeAt):
		return PreClose
	default:
		return Closed
	}
}

// CurrentState is State(Now()).
func (c *Clock) CurrentState() State {
	return c.State(c.Now())
}

// IsTradable reports whether new entries may be opened in this state.
func (s State) IsTradable() bool { return s == Open }

// NextOpen returns the next time the market transitions into OPEN,
// skipping holidays/weekends.
func (c *Clock) NextOpen(after time.Time) time.Time {
	t := after.In(c.loc)
	for i := 0; i < 14; i++ {
		candidate := time.Date(t.Year(), t.Month(), t.Day(), c.session.OpenHour, c.session.OpenMinute, 0, 0, c.loc)
		if !c.isHoliday(candidate) && candidate.After(after) {
			return candidate
		}
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Holidays returns the sorted list of configured holiday dates, for status
// reporting.
func (c *Clock) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for k := range c.holidays {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
