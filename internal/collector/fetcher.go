package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"TrendScout/internal/model"
)

// Source fetches daily bars for one symbol over [from, to].
// An empty slice with a nil error means the source has no data for the symbol.
type Source interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
	Name() string
}

// newHTTPClient builds a client that optionally routes through proxyURL.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// calendarDay drops the clock part of t, keeping its calendar date in t's location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
