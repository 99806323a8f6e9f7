package viewport

import "time"

// CullGate coalesces camera-move bursts so the culling pass executes at a
// bounded rate no matter how fast the camera moves. The gate is purely
// synchronous: callers ask permission on every camera event and run the pass
// only when the gate opens. The first event after a quiet period always
// passes.
type CullGate struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewCullGate creates a gate with the given minimum interval between passes
func NewCullGate(interval time.Duration) *CullGate {
	return NewCullGateWithClock(interval, time.Now)
}

// NewCullGateWithClock creates a gate with an injectable clock for tests
func NewCullGateWithClock(interval time.Duration, now func() time.Time) *CullGate {
	return &CullGate{interval: interval, now: now}
}

// Allow reports whether a culling pass may run now, and if so marks the gate
// as fired. Events arriving inside the interval are coalesced into the next
// allowed pass.
func (g *CullGate) Allow() bool {
	t := g.now()
	if !g.last.IsZero() && t.Sub(g.last) < g.interval {
		return false
	}
	g.last = t
	return true
}

// Reset reopens the gate immediately
func (g *CullGate) Reset() {
	g.last = time.Time{}
}
