// Package strategy classifies the latest bars of a symbol into buy-signal
// and uptrend records.
package strategy

import (
	"fmt"

	"TrendScout/internal/calculator"
	"TrendScout/internal/model"
)

// Rules holds the thresholds the detector evaluates against.
type Rules struct {
	SignalMA   int     `yaml:"signal_ma" default:"61" validate:"gt=0"`
	RSIPeriod  int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	RSIMin     float64 `yaml:"rsi_min" default:"55" validate:"gte=0,lte=100"`
	RSIMax     float64 `yaml:"rsi_max" default:"65" validate:"gte=0,lte=100,gtefield=RSIMin"`
	TrendShort int     `yaml:"trend_short" default:"50" validate:"gt=0,ltfield=TrendLong"`
	TrendLong  int     `yaml:"trend_long" default:"200" validate:"gt=0"`
	MinVolume  int64   `yaml:"min_volume" default:"50000" validate:"gte=0"`
	MinBars    int     `yaml:"min_bars" default:"200" validate:"gte=2"`
}

// DefaultRules returns the standard 61-SMA crossover, RSI 55-65 band,
// 50/200 trend and 50,000 volume floor.
func DefaultRules() Rules {
	return Rules{
		SignalMA:   61,
		RSIPeriod:  14,
		RSIMin:     55,
		RSIMax:     65,
		TrendShort: 50,
		TrendLong:  200,
		MinVolume:  50000,
		MinBars:    200,
	}
}

// Windows converts the rules into indicator look-backs.
func (r Rules) Windows() calculator.Windows {
	return calculator.Windows{
		Signal:    r.SignalMA,
		Short:     r.TrendShort,
		Long:      r.TrendLong,
		RSIPeriod: r.RSIPeriod,
	}
}

// Evaluate inspects the last two bars of series against ind.
//
// Gates run in a fixed order: history length, then today's rsi, ma_long and
// ma_signal definedness, then the volume floor. The first gate that fails
// decides the skip reason. Past the gates, the buy-signal and uptrend rules
// are checked independently and either, both or neither record is set.
func Evaluate(series model.SymbolSeries, ind model.IndicatorSeries, r Rules) model.Outcome {
	out := model.Outcome{Symbol: series.Symbol}

	n := series.Len()
	if ind.Len() != n || len(ind.MASignal) != n || len(ind.MAShort) != n || len(ind.MALong) != n {
		out.Status = model.OutcomeFailed
		out.Err = fmt.Errorf("indicator length mismatch: %d bars, %d rsi values", n, ind.Len())
		return out
	}

	if n < r.MinBars || n < 2 {
		return skip(out, model.SkipInsufficientHistory)
	}

	today, yesterday := n-1, n-2
	if !ind.RSI[today].Valid || !ind.MALong[today].Valid || !ind.MASignal[today].Valid {
		return skip(out, model.SkipIndicatorUndefined)
	}

	bar := series.Bars[today]
	if !liquid(bar, r.MinVolume) {
		return skip(out, model.SkipIlliquid)
	}

	out.Status = model.OutcomeSuccess
	closes := [2]float64{series.Bars[yesterday].Close, bar.Close}
	rsi := ind.RSI[today].Float64

	if crossedUp(closes, ind.MASignal[yesterday], ind.MASignal[today]) && rsiInBand(rsi, r.RSIMin, r.RSIMax) {
		out.Signal = &model.SignalRecord{
			Symbol: series.Symbol,
			Close:  bar.Close,
			Date:   bar.Date,
			Type:   model.SignalBuy,
			RSI:    round2(rsi),
		}
	}

	if aboveTrend(bar.Close, ind.MAShort[today], ind.MALong[today]) {
		out.Trend = &model.TrendRecord{
			Symbol:   series.Symbol,
			Close:    bar.Close,
			SMAShort: round2(ind.MAShort[today].Float64),
			SMALong:  round2(ind.MALong[today].Float64),
		}
	}
	return out
}

func skip(out model.Outcome, reason model.SkipReason) model.Outcome {
	out.Status = model.OutcomeSkipped
	out.Reason = reason
	return out
}
