package calculator

import (
	"fmt"

	"TrendScout/internal/model"
)

// Windows configures the look-back of each indicator.
type Windows struct {
	Signal    int // SMA crossed by close for a buy signal
	Short     int // short trend SMA
	Long      int // long trend SMA
	RSIPeriod int
}

// DefaultWindows returns the 61/50/200 SMA and 14-period RSI set.
func DefaultWindows() Windows {
	return Windows{Signal: 61, Short: 50, Long: 200, RSIPeriod: 14}
}

// Compute builds the indicator series aligned with closes.
func Compute(closes []float64, w Windows) (model.IndicatorSeries, error) {
	var (
		out model.IndicatorSeries
		err error
	)
	if out.MASignal, err = SMASeries(closes, w.Signal); err != nil {
		return model.IndicatorSeries{}, fmt.Errorf("ma_signal: %w", err)
	}
	if out.MAShort, err = SMASeries(closes, w.Short); err != nil {
		return model.IndicatorSeries{}, fmt.Errorf("ma_short: %w", err)
	}
	if out.MALong, err = SMASeries(closes, w.Long); err != nil {
		return model.IndicatorSeries{}, fmt.Errorf("ma_long: %w", err)
	}
	if out.RSI, err = RSISeries(closes, w.RSIPeriod); err != nil {
		return model.IndicatorSeries{}, fmt.Errorf("rsi: %w", err)
	}
	return out, nil
}
