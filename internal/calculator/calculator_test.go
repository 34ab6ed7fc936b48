package calculator

import (
	"fmt"
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestCalculateSMA(t *testing.T) {
	got, err := CalculateSMA([]float64{100, 102, 104, 103, 105}, 3)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "SMA(3)", got, 104.0, 1e-9)

	if _, err := CalculateSMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error for insufficient data")
	}
	if _, err := CalculateSMA([]float64{1, 2}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestSMASeries_WarmUp(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA(3): -, -, 102, 103, 104
	series, err := SMASeries([]float64{100, 102, 104, 103, 105}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 102, 103, 104}
	for i, v := range series {
		if i < 2 {
			if v.Valid {
				t.Errorf("index %d: expected undefined, got %v", i, v.Float64)
			}
			continue
		}
		if !v.Valid {
			t.Fatalf("index %d: expected defined value", i)
		}
		assertClose(t, fmt.Sprintf("SMA(3)[%d]", i), v.Float64, want[i], 1e-9)
	}
}

func TestSMASeries_ConstantPrice(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 42.5
	}
	for _, w := range []int{50, 61, 200} {
		series, err := SMASeries(closes, w)
		if err != nil {
			t.Fatal(err)
		}
		for i := w - 1; i < len(series); i++ {
			if !series[i].Valid || series[i].Float64 != 42.5 {
				t.Fatalf("SMA(%d)[%d]: expected 42.5, got %+v", w, i, series[i])
			}
		}
	}
}

func TestSMASeries_ShortInput(t *testing.T) {
	series, err := SMASeries([]float64{1, 2, 3}, 200)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range series {
		if v.Valid {
			t.Errorf("index %d: expected undefined", i)
		}
	}
}

func TestRSISeries_HandCalculated(t *testing.T) {
	// period 2, alpha 0.5, closes 10, 11, 10, 12
	// i=1: gain 1   -> avgGain 0.5,   avgLoss 0    -> 100
	// i=2: loss 1   -> avgGain 0.25,  avgLoss 0.5  -> rs 0.5 -> 33.3333
	// i=3: gain 2   -> avgGain 1.125, avgLoss 0.25 -> rs 4.5 -> 81.8182
	series, err := RSISeries([]float64{10, 11, 10, 12}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if series[0].Valid {
		t.Errorf("rsi[0] should be undefined, got %v", series[0].Float64)
	}
	want := []float64{0, 100, 33.3333, 81.8182}
	for i := 1; i < len(series); i++ {
		if !series[i].Valid {
			t.Fatalf("rsi[%d] should be defined", i)
		}
		assertClose(t, fmt.Sprintf("rsi[%d]", i), series[i].Float64, want[i], 0.001)
	}
}

func TestRSISeries_NoLossesIs100(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	series, err := RSISeries(closes, 14)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Float64 != 100 {
			t.Fatalf("rsi[%d]: expected exactly 100, got %v", i, series[i].Float64)
		}
	}
}

func TestRSISeries_FlatIs100(t *testing.T) {
	series, err := RSISeries([]float64{5, 5, 5, 5}, 14)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Valid || series[i].Float64 != 100 {
			t.Errorf("rsi[%d]: expected 100 for flat series, got %+v", i, series[i])
		}
	}
}

func TestRSISeries_Bounded(t *testing.T) {
	closes := []float64{50, 48, 52, 47, 49, 53, 51, 46, 44, 60, 58, 57, 59, 40, 41, 45, 43, 42, 39, 38}
	series, err := RSISeries(closes, 14)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(series); i++ {
		v := series[i].Float64
		if v < 0 || v > 100 {
			t.Errorf("rsi[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestRSISeries_FallingOnlyIsZero(t *testing.T) {
	series, err := RSISeries([]float64{10, 9, 8, 7}, 14)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "rsi[3]", series[3].Float64, 0, 1e-9)
}

func TestCompute_AlignsLengths(t *testing.T) {
	closes := make([]float64, 210)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	ind, err := Compute(closes, DefaultWindows())
	if err != nil {
		t.Fatal(err)
	}
	for name, s := range map[string]int{
		"ma_signal": len(ind.MASignal),
		"ma_short":  len(ind.MAShort),
		"ma_long":   len(ind.MALong),
		"rsi":       len(ind.RSI),
	} {
		if s != len(closes) {
			t.Errorf("%s: length %d, want %d", name, s, len(closes))
		}
	}
	if ind.MALong[198].Valid || !ind.MALong[199].Valid {
		t.Error("ma_long should first be defined at index 199")
	}
	if ind.MASignal[59].Valid || !ind.MASignal[60].Valid {
		t.Error("ma_signal should first be defined at index 60")
	}
	// mean of 1..200
	assertClose(t, "ma_long[199]", ind.MALong[199].Float64, 100.5, 1e-9)
}

func TestCompute_RejectsBadWindow(t *testing.T) {
	w := DefaultWindows()
	w.Short = 0
	if _, err := Compute([]float64{1, 2, 3}, w); err == nil {
		t.Error("expected error for zero window")
	}
}
