package timing

import "errors"

// State is the state of an Event.
type State int

// The states of an Event.
const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}

	return "idle"
}

// Errors reported on misuse of an Event.
var (
	ErrNotRunning     = errors.New("timing: event is not running")
	ErrAlreadyRunning = errors.New("timing: event is already running")
)

// An Event accumulates the number of calls and the elapsed time of one named
// unit of work.
//
// Time only accumulates on the Stop edge. An event that is started and never
// stopped reports the time of its completed intervals only.
type Event struct {
	calls     int
	seconds   float64
	state     State
	startedAt float64
}

// Calls returns how many times the event has been started.
func (e *Event) Calls() int {
	return e.calls
}

// Seconds returns the accumulated time of all completed intervals.
func (e *Event) Seconds() float64 {
	return e.seconds
}

// State returns whether the event is currently running.
func (e *Event) State() State {
	return e.state
}

// Start counts a call and marks the start of an interval.
func (e *Event) Start(now float64) error {
	if e.state == Running {
		return ErrAlreadyRunning
	}

	e.calls++
	e.startedAt = now
	e.state = Running

	return nil
}

// Stop closes the current interval and accumulates its duration.
func (e *Event) Stop(now float64) error {
	if e.state != Running {
		return ErrNotRunning
	}

	elapsed := now - e.startedAt
	if elapsed > 0 {
		e.seconds += elapsed
	}

	e.state = Idle

	return nil
}

// Toggle starts an idle event and stops a running one.
func (e *Event) Toggle(now float64) {
	if e.state == Running {
		_ = e.Stop(now)
		return
	}

	_ = e.Start(now)
}
