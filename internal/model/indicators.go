package model

import "github.com/guregu/null/v6"

// IndicatorSeries holds indicator values aligned index-for-index with a SymbolSeries.
// A value that is not Valid is undefined (insufficient history or 0/0) and must not be read as zero.
type IndicatorSeries struct {
	MASignal []null.Float
	MAShort  []null.Float
	MALong   []null.Float
	RSI      []null.Float
}

// Len returns the aligned length of the series.
func (s IndicatorSeries) Len() int { return len(s.RSI) }
