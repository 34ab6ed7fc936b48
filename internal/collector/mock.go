package collector

import (
	"context"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"TrendScout/internal/model"
)

// MockSource returns fixed per-symbol data for development and testing.
// Symbols missing from Data return no bars.
type MockSource struct {
	Data   map[string][]model.Bar
	Errors map[string]error

	mu    sync.Mutex
	calls []string
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	var out []model.Bar
	for _, b := range m.Data[symbol] {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Calls returns the symbols requested so far, in order.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// GenerateBars builds n daily bars ending on end, drifting upward from base.
func GenerateBars(symbol string, base float64, n int, end time.Time, volume int64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		p := base * (1 + float64(i-n/2)*0.001)
		bars[i] = model.Bar{
			Symbol: symbol,
			Date:   calendarDay(end).AddDate(0, 0, -(n - 1 - i)),
			Close:  p,
			Volume: null.IntFrom(volume),
		}
	}
	return bars
}
