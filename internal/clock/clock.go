/*

Clock abstraction. The engine itself takes `now` as an explicit argument so
its operations stay pure; the service layer obtains that value from a Clock
so tests can pin and advance time deterministically.

*/

package clock

import "time"

// Clock supplies the current Unix time in seconds.
type Clock interface {
	Now() uint64
}

// System reads the wall clock.
type System struct{}

// Now returns the current Unix time in seconds.
func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	now uint64
}

// NewManual returns a Manual clock pinned at start.
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

// Now returns the pinned time.
func (m *Manual) Now() uint64 {
	return m.now
}

// Set pins the clock to t.
func (m *Manual) Set(t uint64) {
	m.now = t
}

// Advance moves the clock forward by d seconds.
func (m *Manual) Advance(d uint64) {
	m.now += d
}
