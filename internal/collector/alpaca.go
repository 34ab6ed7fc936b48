package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/guregu/null/v6"

	"TrendScout/internal/model"
)

// AlpacaSource implements Source using the Alpaca market data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   string
}

// NewAlpacaSource creates an Alpaca source. An empty baseURL uses Alpaca's
// default data endpoint and an empty feed means IEX.
func NewAlpacaSource(apiKey, apiSecret, baseURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   feed,
	}
}

func (a *AlpacaSource) Name() string { return "alpaca" }

func (a *AlpacaSource) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// End is exclusive for daily bars, so add one day to include the end date.
	bars, err := a.client.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to.AddDate(0, 0, 1),
		Feed:      marketdata.Feed(a.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars: %w", err)
	}
	return fromAlpacaBars(symbol, bars), nil
}

func fromAlpacaBars(symbol string, in []marketdata.Bar) []model.Bar {
	out := make([]model.Bar, 0, len(in))
	for _, ab := range in {
		out = append(out, model.Bar{
			Symbol: symbol,
			Date:   calendarDay(ab.Timestamp.UTC()),
			Open:   null.FloatFrom(ab.Open),
			High:   null.FloatFrom(ab.High),
			Low:    null.FloatFrom(ab.Low),
			Close:  ab.Close,
			Volume: null.IntFrom(int64(ab.Volume)),
		})
	}
	return out
}
