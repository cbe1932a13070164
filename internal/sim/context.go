// Package sim holds the explicit simulation context passed into every tick.
package sim

import (
	"sync"
	"time"

	"github.com/fpsframework/firearm/pkg/core"
)

// Context holds the simulation clock and the global pause/active flags.
// It is advanced by the host once per tick; components only read it.
type Context struct {
	mu      sync.RWMutex
	now     float64
	tick    uint64
	paused  bool
	active  bool
	session *core.Session
}

// NewContext creates an active, unpaused context at time zero
func NewContext() *Context {
	return &Context{
		active:  true,
		session: &core.Session{Name: "No session loaded"},
	}
}

// Now returns the simulation time in seconds
func (c *Context) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Tick returns the number of completed Advance calls
func (c *Context) Tick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Advance moves the clock forward by dt seconds. Paused contexts do not advance.
func (c *Context) Advance(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || dt <= 0 {
		return
	}
	c.now += dt
	c.tick++
}

// Paused reports whether the simulation is globally paused
func (c *Context) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// SetPaused sets the global pause flag
func (c *Context) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// Active reports whether the simulation accepts gameplay input
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive sets the active flag
func (c *Context) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = active
}

// GetSession returns the current session
func (c *Context) GetSession() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession sets the current session
func (c *Context) SetSession(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// WallTime maps a simulation time onto the session's wall clock.
func (c *Context) WallTime(simTime float64) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := c.session.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return start.Add(time.Duration(simTime * float64(time.Second)))
}
