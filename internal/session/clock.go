// Package session derives the venue's trading calendar for the day from
// the broker's liquid-hours metadata and answers "is the market open"
// on every tick.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/opensqt/daytrader/internal/core"
)

// ErrClosePast is returned when the selected close instant is already in
// the past at definition time. Startup treats this as fatal.
var ErrClosePast = errors.New("session close is already in the past")

// ErrStaleHours is returned when the metadata's open date is too far out,
// which marks a stale placeholder rather than today's calendar.
var ErrStaleHours = errors.New("liquid hours are stale")

var tokenSplit = regexp.MustCompile(`[;-]`)

// Clock is the session calendar state machine:
// Uninitialized -> Defined -> Open <-> Closed -> ClosedFinal.
type Clock struct {
	mu sync.RWMutex

	state    core.SessionState
	loc      *time.Location
	hasPause bool

	maxDaysToOpen int
	grace         time.Duration

	open       time.Time
	close      time.Time
	pauseStart time.Time
	pauseEnd   time.Time

	logger core.ILogger
}

// NewClock creates an undefined clock for the venue.
func NewClock(loc *time.Location, hasPause bool, maxDaysToOpen int, shutdownGrace time.Duration, logger core.ILogger) *Clock {
	return &Clock{
		state:         core.SessionUninitialized,
		loc:           loc,
		hasPause:      hasPause,
		maxDaysToOpen: maxDaysToOpen,
		grace:         shutdownGrace,
		logger:        logger.WithField("component", "session"),
	}
}

// Tokens splits a broker liquid-hours string into its instant tokens.
// The operator picks the open and close indices out of this list.
func Tokens(liquidHours string) []string {
	parts := tokenSplit.Split(liquidHours, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseInstant parses a "YYYYMMDD:HHMM" token in the venue's timezone.
func (c *Clock) parseInstant(token string) (time.Time, error) {
	t, err := time.ParseInLocation("20060102:1504", token, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad liquid-hours token %q: %w", token, err)
	}
	return t, nil
}

// Define fixes the day's open and close from the liquid-hours token list
// at the operator-chosen indices. Venues with a midday pause derive the
// pause bounds from the tokens adjacent to open and close. Fires once;
// later calls are no-ops.
func (c *Clock) Define(liquidHours string, openIdx, closeIdx int, now time.Time) error {
	return c.define(liquidHours, openIdx, closeIdx, now, true)
}

// DefineFinal is Define without the stale-hours guard. Used once the
// whole instrument universe has reported metadata and no fresher hours
// can arrive.
func (c *Clock) DefineFinal(liquidHours string, openIdx, closeIdx int, now time.Time) error {
	return c.define(liquidHours, openIdx, closeIdx, now, false)
}

func (c *Clock) define(liquidHours string, openIdx, closeIdx int, now time.Time, checkStale bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != core.SessionUninitialized {
		return nil
	}

	tokens := Tokens(liquidHours)
	if openIdx < 0 || closeIdx <= openIdx || closeIdx >= len(tokens) {
		return fmt.Errorf("liquid-hours indices out of range: open=%d close=%d tokens=%d", openIdx, closeIdx, len(tokens))
	}
	if c.hasPause && closeIdx-openIdx < 3 {
		// pause venues cycle open, pause-start, pause-end, close
		return fmt.Errorf("liquid-hours indices too close for a pause venue: open=%d close=%d", openIdx, closeIdx)
	}

	open, err := c.parseInstant(tokens[openIdx])
	if err != nil {
		return err
	}
	closeAt, err := c.parseInstant(tokens[closeIdx])
	if err != nil {
		return err
	}

	daysOut := open.Sub(now).Hours() / 24
	if checkStale && daysOut >= float64(c.maxDaysToOpen) {
		return fmt.Errorf("%w: open %s is %.0f days out", ErrStaleHours, open.Format(time.RFC3339), daysOut)
	}
	if closeAt.Before(now) {
		return fmt.Errorf("%w: close %s", ErrClosePast, closeAt.Format(time.RFC3339))
	}

	if c.hasPause {
		ps, err := c.parseInstant(tokens[openIdx+1])
		if err != nil {
			return err
		}
		pe, err := c.parseInstant(tokens[closeIdx-1])
		if err != nil {
			return err
		}
		c.pauseStart = ps
		c.pauseEnd = pe
	}

	c.open = open
	c.close = closeAt
	c.state = core.SessionDefined

	c.logger.Info("Session hours defined",
		"open", open.Format("15:04"),
		"close", closeAt.Format("15:04"),
		"pause", c.hasPause)
	return nil
}

// Defined reports whether the hours are known.
func (c *Clock) Defined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state != core.SessionUninitialized
}

// State returns the last state computed by Refresh.
func (c *Clock) State() core.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsOpen recomputes openness at the given instant without advancing the
// state machine.
func (c *Clock) IsOpen(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isOpenLocked(now)
}

func (c *Clock) isOpenLocked(now time.Time) bool {
	if c.state == core.SessionUninitialized {
		return false
	}
	if now.Before(c.open) || !now.Before(c.close) {
		return false
	}
	if c.hasPause && !now.Before(c.pauseStart) && now.Before(c.pauseEnd) {
		return false
	}
	return true
}

// Refresh advances the state machine to the given instant and reports
// the one-shot edges: openEdge on Closed-to-Open, closeEdge on
// Open-to-Closed.
func (c *Clock) Refresh(now time.Time) (state core.SessionState, openEdge, closeEdge bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == core.SessionUninitialized {
		return c.state, false, false
	}
	if now.After(c.close.Add(c.grace)) {
		c.state = core.SessionClosedFinal
		return c.state, false, false
	}

	wasOpen := c.state == core.SessionOpen
	isOpen := c.isOpenLocked(now)

	switch {
	case isOpen && !wasOpen:
		c.state = core.SessionOpen
		return c.state, true, false
	case !isOpen && wasOpen:
		c.state = core.SessionClosed
		return c.state, false, true
	case isOpen:
		return c.state, false, false
	default:
		if c.state == core.SessionDefined && now.After(c.close) {
			c.state = core.SessionClosed
		}
		return c.state, false, false
	}
}

// MinutesToOpen returns how many minutes remain until trading resumes.
// Past the morning open on a pause venue the next open is the pause end,
// so the countdown measures against that instead. Negative once the
// relevant instant has passed.
func (c *Clock) MinutesToOpen(now time.Time) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hasPause && now.After(c.open) {
		return c.pauseEnd.Sub(now).Minutes()
	}
	return c.open.Sub(now).Minutes()
}

// OpenTime returns the session open instant.
func (c *Clock) OpenTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// CloseTime returns the session close instant.
func (c *Clock) CloseTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.close
}

// PastFinal reports whether the shutdown grace after close has elapsed.
func (c *Clock) PastFinal(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == core.SessionUninitialized {
		return false
	}
	return now.After(c.close.Add(c.grace))
}
