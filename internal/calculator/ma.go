package calculator

import (
	"errors"

	"github.com/guregu/null/v6"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the simple moving average at every index of closes.
// Values before index window-1 are undefined. Each window is summed from
// scratch so the result at i does not depend on earlier rounding.
func SMASeries(closes []float64, window int) ([]null.Float, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	out := make([]null.Float, len(closes))
	for i := window - 1; i < len(closes); i++ {
		v, err := CalculateSMA(closes[:i+1], window)
		if err != nil {
			return nil, err
		}
		out[i] = null.FloatFrom(v)
	}
	return out, nil
}
