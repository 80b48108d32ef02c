package comm

import (
	"io"

	"github.com/sarchlab/typedcomm/timing"
)

// Time toggles the named user event. Paired calls bracket a timed region.
func (c *Communicator) Time(event string) {
	c.timer.Update(event)
}

// Display writes the timing report of this rank.
func (c *Communicator) Display(label string) error {
	return c.timer.Display(label)
}

// SetReportFile mirrors every following report to w. A nil w stops the
// mirroring.
func (c *Communicator) SetReportFile(w io.Writer) {
	c.timer.SetMirror(w)
}

// A TimingRecorder persists timing snapshots.
type TimingRecorder interface {
	RecordTiming(label string, rank, size int, stats []timing.EventStat) error
}

// RecordTiming hands the current timing snapshot to rec.
func (c *Communicator) RecordTiming(rec TimingRecorder, label string) error {
	return rec.RecordTiming(label, c.rank, c.size, c.timer.Snapshot())
}
