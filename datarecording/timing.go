package datarecording

import (
	"context"
	"sync"

	"github.com/sarchlab/typedcomm/timing"
)

// TimingTableName is the table that holds timing snapshots.
const TimingTableName = "timing"

// TimingRow is one event of one rank's timing snapshot.
type TimingRow struct {
	Label   string
	Rank    int
	Size    int
	Event   string
	Calls   int
	Seconds float64
}

// TimingTable records timing snapshots of communicators into a DataRecorder.
// It can be shared by all ranks of a process.
type TimingTable struct {
	lock    sync.Mutex
	rec     DataRecorder
	created bool
}

// NewTimingTable creates a TimingTable writing into rec.
func NewTimingTable(rec DataRecorder) *TimingTable {
	return &TimingTable{rec: rec}
}

// RecordTiming buffers one row per event. Rows reach the database on Flush.
func (t *TimingTable) RecordTiming(
	label string,
	rank, size int,
	stats []timing.EventStat,
) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.created {
		if err := t.rec.CreateTable(TimingTableName, TimingRow{}); err != nil {
			return err
		}

		t.created = true
	}

	for _, s := range stats {
		row := TimingRow{
			Label:   label,
			Rank:    rank,
			Size:    size,
			Event:   s.Name,
			Calls:   s.Calls,
			Seconds: s.Seconds,
		}

		if err := t.rec.InsertData(TimingTableName, row); err != nil {
			return err
		}
	}

	return nil
}

// Flush writes the buffered rows.
func (t *TimingTable) Flush() error {
	return t.rec.Flush()
}

// ReadTiming returns the rows recorded under label, ordered by rank and event.
// An empty label returns every row.
func ReadTiming(ctx context.Context, r DataReader, label string) ([]TimingRow, error) {
	r.MapTable(TimingTableName, TimingRow{})

	params := QueryParams{OrderBy: "Label, Rank, Event"}
	if label != "" {
		params.Where = "Label = ?"
		params.Args = []any{label}
	}

	results, _, err := r.Query(ctx, TimingTableName, params)
	if err != nil {
		return nil, err
	}

	rows := make([]TimingRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, *res.(*TimingRow))
	}

	return rows, nil
}
