package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// RawRow is one unparsed bar-store row, fields as they appear in the file.
type RawRow struct {
	Symbol string
	Date   string
	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// Bar represents one trading day for one symbol.
// Close and Date are always set; the other fields may be undefined.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   null.Float
	High   null.Float
	Low    null.Float
	Close  float64
	Volume null.Int
}

// SymbolSeries is a date-ascending run of bars for a single symbol.
type SymbolSeries struct {
	Symbol string
	Bars   []Bar
}

// Len returns the number of bars in the series.
func (s SymbolSeries) Len() int { return len(s.Bars) }

// Closes extracts the close prices in series order.
func (s SymbolSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
