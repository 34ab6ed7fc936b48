package strategy

import (
	"math"

	"github.com/guregu/null/v6"

	"TrendScout/internal/model"
)

// liquid reports whether the bar traded at least minVolume. An undefined
// volume is never liquid.
func liquid(bar model.Bar, minVolume int64) bool {
	return bar.Volume.Valid && bar.Volume.Int64 >= minVolume
}

// crossedUp reports a strict close-over-MA crossover between yesterday and
// today. closes holds {yesterday, today}. Equality on either side is not a
// crossover, and an undefined MA yesterday means there is nothing to cross.
func crossedUp(closes [2]float64, maYesterday, maToday null.Float) bool {
	if !maYesterday.Valid || !maToday.Valid {
		return false
	}
	return closes[0] < maYesterday.Float64 && closes[1] > maToday.Float64
}

// rsiInBand checks the inclusive [lo, hi] momentum band.
func rsiInBand(rsi, lo, hi float64) bool {
	return rsi >= lo && rsi <= hi
}

// aboveTrend requires close to sit strictly above both trend averages.
func aboveTrend(closePrice float64, maShort, maLong null.Float) bool {
	if !maShort.Valid || !maLong.Valid {
		return false
	}
	return closePrice > maLong.Float64 && closePrice > maShort.Float64
}

// round2 rounds to 2 decimal places: scale by 100, round half to even on the
// scaled float, scale back. 60.125 gives 60.12 and 1.005 gives 1.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
