package calculator

import (
	"errors"

	"github.com/guregu/null/v6"
)

// RSISeries computes Wilder's RSI at every index of closes.
//
// Average gain and loss are exponentially smoothed with alpha = 1/period,
// seeded at index 0 with zero (there is no prior delta), so the first
// defined value is at index 1 and no separate simple-average warm-up is
// used. When the average loss is zero the RSI is 100, including the flat
// case where the average gain is zero as well.
func RSISeries(closes []float64, period int) ([]null.Float, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := make([]null.Float, len(closes))
	if len(closes) < 2 {
		return out, nil
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = alpha*gain + (1-alpha)*avgGain
		avgLoss = alpha*loss + (1-alpha)*avgLoss
		out[i] = null.FloatFrom(rsiFromAverages(avgGain, avgLoss))
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	rsi := 100.0 - 100.0/(1.0+rs)
	if rsi < 0 {
		return 0
	}
	return rsi
}
