package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"TrendScout/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource implements Source using the Yahoo Finance chart API.
type YahooSource struct {
	BaseURL   string
	Suffix    string            // exchange suffix appended to plain symbols, e.g. ".NS"
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	Client    *http.Client
}

// NewYahooSource creates a Yahoo source with optional proxy support.
func NewYahooSource(suffix, proxyURL string, timeout time.Duration) *YahooSource {
	return &YahooSource{
		BaseURL:   yahooBaseURL,
		Suffix:    suffix,
		SymbolMap: map[string]string{},
		Client:    newHTTPClient(proxyURL, timeout),
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

func (f *YahooSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	if f.Suffix != "" && !strings.Contains(symbol, ".") && !strings.HasPrefix(symbol, "^") {
		return symbol + f.Suffix
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat reads a JSON number, returning undefined for null or other types.
func toFloat(v interface{}) null.Float {
	switch n := v.(type) {
	case float64:
		return null.FloatFrom(n)
	case int:
		return null.FloatFrom(float64(n))
	default:
		return null.Float{}
	}
}

func toVolume(v interface{}) null.Int {
	f := toFloat(v)
	if !f.Valid || f.Float64 < 0 {
		return null.Int{}
	}
	return null.IntFrom(int64(f.Float64))
}

func at(values []interface{}, i int) interface{} {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func (f *YahooSource) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.AddDate(0, 0, 1).Unix()))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(f.BaseURL, "/"), url.PathEscape(f.yahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := toFloat(at(quote.Close, i))
		if !c.Valid {
			continue // holidays and halted sessions come back as null
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			Date:   calendarDay(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
			Open:   toFloat(at(quote.Open, i)),
			High:   toFloat(at(quote.High, i)),
			Low:    toFloat(at(quote.Low, i)),
			Close:  c.Float64,
			Volume: toVolume(at(quote.Volume, i)),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
