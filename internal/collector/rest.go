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

// RESTSource implements Source against a generic JSON bars endpoint:
//
//	GET {BaseURL}/api/v1/bars/daily?symbol=X&from=2024-01-01&to=2024-12-31
//
// answering with an array of {timestamp, open, high, low, close, volume}.
type RESTSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTSource creates a new source with optional proxy support.
func NewRESTSource(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTSource {
	return &RESTSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *RESTSource) Name() string { return "rest" }

// restBar is the expected JSON shape. Prices may be null.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
}

func (f *RESTSource) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.Bar, 0, len(raw))
	for _, rb := range raw {
		if rb.Close == nil {
			continue
		}
		bars = append(bars, model.Bar{
			Symbol: symbol,
			Date:   calendarDay(time.Unix(rb.Timestamp, 0).UTC()),
			Open:   null.FloatFromPtr(rb.Open),
			High:   null.FloatFromPtr(rb.High),
			Low:    null.FloatFromPtr(rb.Low),
			Close:  *rb.Close,
			Volume: volumeFromPtr(rb.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func volumeFromPtr(v *float64) null.Int {
	if v == nil || *v < 0 {
		return null.Int{}
	}
	return null.IntFrom(int64(*v))
}
