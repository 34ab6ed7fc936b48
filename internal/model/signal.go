package model

import "time"

// SignalType labels a signal row.
type SignalType string

const SignalBuy SignalType = "Buy Signal"

// SignalRecord is one row of the buy-signal table.
type SignalRecord struct {
	Symbol string
	Close  float64
	Date   time.Time
	Type   SignalType
	RSI    float64 // rounded to 2 dp
}

// TrendRecord is one row of the uptrend watchlist.
type TrendRecord struct {
	Symbol   string
	Close    float64
	SMAShort float64 // rounded to 2 dp
	SMALong  float64 // rounded to 2 dp
}

// OutcomeStatus tags how a single symbol's evaluation ended.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// SkipReason explains a Skipped outcome.
type SkipReason string

const (
	SkipNone                SkipReason = ""
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipIndicatorUndefined  SkipReason = "indicator_undefined"
	SkipIlliquid            SkipReason = "illiquid"
)

// Outcome is the per-symbol result of one scan.
// Signal and Trend are only ever set on a Success outcome.
type Outcome struct {
	Symbol string
	Status OutcomeStatus
	Reason SkipReason
	Err    error
	Signal *SignalRecord
	Trend  *TrendRecord
}
