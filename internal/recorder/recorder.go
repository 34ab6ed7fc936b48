package recorder

import (
	"time"

	"TrendScout/internal/model"
)

// FetchRun summarizes one run of the fetch pipeline.
type FetchRun struct {
	StartedAt    time.Time
	Duration     time.Duration
	Source       string
	Requested    int
	Skipped      int
	Fetched      int
	Empty        int
	Failed       int
	RowsAppended int
	Batches      int
	Err          string // fatal error, empty on success
}

// ScanRun summarizes one scan with the records it produced.
type ScanRun struct {
	StartedAt   time.Time
	Duration    time.Duration
	RowsRead    int
	RowsDropped int
	Symbols     int
	Success     int
	Skipped     int
	Failed      int
	Signals     []model.SignalRecord
	Trends      []model.TrendRecord
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordFetch(run *FetchRun) error
	RecordScan(run *ScanRun) error
	Close() error
}
