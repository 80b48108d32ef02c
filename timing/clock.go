package timing

import "time"

// A Clock tells the current time in seconds since an arbitrary origin.
type Clock interface {
	Now() float64
	Name() string
}

// WallClock is a monotonic clock that counts from its creation.
type WallClock struct {
	origin time.Time
}

// NewWallClock creates a WallClock starting at zero.
func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

// Now returns the seconds elapsed since the clock was created.
func (c *WallClock) Now() float64 {
	return time.Since(c.origin).Seconds()
}

// Name returns the name of the clock.
func (c *WallClock) Name() string {
	return "wall_clock"
}

// A TimeSource is anything that can report a time in seconds, such as a
// transport's own timer.
type TimeSource interface {
	Wtime() float64
}

// TransportClock adapts a TimeSource into a Clock.
type TransportClock struct {
	Source TimeSource
}

// Now returns the time reported by the source.
func (c TransportClock) Now() float64 {
	return c.Source.Wtime()
}

// Name returns the name of the clock.
func (c TransportClock) Name() string {
	return "transport_wtime"
}
