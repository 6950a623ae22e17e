// Package clock provides the time source used by the recurring engines.
//
// Engines never call time.Now() directly: "today", the current month and the
// daily-close window all come from an injected Clock so tests can pin them.
package clock

import "time"

// DateLayout is the ISO calendar-date layout used for day keys.
const DateLayout = "2006-01-02"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// FuncClock wraps a function as a Clock.
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time { return f() }

// NewReal returns a Clock backed by the system time.
func NewReal() Clock { return RealClock{} }

// NewFixed returns a Clock that always returns t.
func NewFixed(t time.Time) Clock { return FixedClock{T: t} }

// NewFunc returns a Clock backed by f.
func NewFunc(f func() time.Time) Clock { return FuncClock(f) }

// Today returns the UTC calendar date of c as "YYYY-MM-DD".
func Today(c Clock) string {
	return c.Now().UTC().Format(DateLayout)
}
