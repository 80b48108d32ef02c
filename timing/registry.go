// Package timing keeps per-event call counts and elapsed times and renders
// them as a report.
package timing

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// EventStat is a read-only copy of the state of one event.
type EventStat struct {
	Name    string  `json:"name"`
	Calls   int     `json:"calls"`
	Seconds float64 `json:"seconds"`
	Running bool    `json:"running"`
}

// Registry owns a set of named events.
type Registry struct {
	lock    sync.Mutex
	clock   Clock
	events  map[string]*Event
	enabled bool
	output  io.Writer
	mirror  io.Writer
}

// NewRegistry creates an enabled Registry that reads time from the clock and
// reports to standard output.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = NewWallClock()
	}

	return &Registry{
		clock:   clock,
		events:  make(map[string]*Event),
		enabled: true,
		output:  os.Stdout,
	}
}

// Clock returns the clock of the registry.
func (r *Registry) Clock() Clock {
	return r.clock
}

// SetOutput sets the primary report writer.
func (r *Registry) SetOutput(w io.Writer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.output = w
}

// SetMirror sets a secondary writer that receives a copy of every report.
// Passing nil removes it.
func (r *Registry) SetMirror(w io.Writer) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.mirror = w
}

// SetEnabled turns recording on or off. A disabled registry ignores Update,
// Start and Stop.
func (r *Registry) SetEnabled(enabled bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.enabled = enabled
}

// Enabled reports whether the registry records events.
func (r *Registry) Enabled() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.enabled
}

// Update toggles the named event, creating it on first use. Calls must come
// in start/stop pairs.
func (r *Registry) Update(name string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.enabled {
		return
	}

	r.eventLocked(name).Toggle(r.clock.Now())
}

// Start starts the named event.
func (r *Registry) Start(name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.enabled {
		return nil
	}

	if err := r.eventLocked(name).Start(r.clock.Now()); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}

	return nil
}

// Stop stops the named event. Stopping an event that is not running is
// reported and leaves the event untouched.
func (r *Registry) Stop(name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.enabled {
		return nil
	}

	if err := r.eventLocked(name).Stop(r.clock.Now()); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}

	return nil
}

func (r *Registry) eventLocked(name string) *Event {
	e, ok := r.events[name]
	if !ok {
		e = &Event{}
		r.events[name] = e
	}

	return e
}

// Event returns a copy of the named event.
func (r *Registry) Event(name string) (EventStat, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.events[name]
	if !ok {
		return EventStat{}, false
	}

	return statOf(name, e), true
}

// Snapshot returns the state of every event, sorted by name.
func (r *Registry) Snapshot() []EventStat {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}

	sort.Strings(names)

	stats := make([]EventStat, 0, len(names))
	for _, name := range names {
		stats = append(stats, statOf(name, r.events[name]))
	}

	return stats
}

// Reset forgets all events.
func (r *Registry) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.events = make(map[string]*Event)
}

func statOf(name string, e *Event) EventStat {
	return EventStat{
		Name:    name,
		Calls:   e.Calls(),
		Seconds: e.Seconds(),
		Running: e.State() == Running,
	}
}

const reportRule = "          " +
	"------------------------------------------------------------------------"

// Display writes the report to the primary writer and, if set, to the mirror.
func (r *Registry) Display(label string) error {
	report := r.Report(label)

	r.lock.Lock()
	output, mirror := r.output, r.mirror
	r.lock.Unlock()

	if output != nil {
		if _, err := io.WriteString(output, report); err != nil {
			return fmt.Errorf("timing: writing report: %w", err)
		}
	}

	if mirror != nil {
		if _, err := io.WriteString(mirror, report); err != nil {
			return fmt.Errorf("timing: mirroring report: %w", err)
		}
	}

	return nil
}

// Report renders the report as a string.
func (r *Registry) Report(label string) string {
	sb := new(strings.Builder)

	fmt.Fprintln(sb)
	fmt.Fprintln(sb, reportRule)
	fmt.Fprintf(sb, "              time(s)      #call     event        using %s  %s\n",
		r.clock.Name(), label)
	fmt.Fprintln(sb, reportRule)

	for _, s := range r.Snapshot() {
		fmt.Fprintf(sb, "%10s%10.5g  %10d     %s\n", " ", s.Seconds, s.Calls, s.Name)
	}

	fmt.Fprintln(sb, reportRule)

	return sb.String()
}
