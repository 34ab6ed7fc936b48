// Package collector downloads daily bars from an external source and
// appends them, batch by batch, to the bar store. Runs are resumable: a
// symbol already present in the store is never requested again.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendScout/internal/logger"
	"TrendScout/internal/model"
)

// Fetch statuses reported to an Observer.
const (
	StatusFetched = "fetched"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

// BarSink is the durable side of the pipeline.
type BarSink interface {
	Symbols(ctx context.Context) (map[string]struct{}, error)
	Append(bars []model.Bar) (int, error)
}

// Observer receives one call per requested symbol.
type Observer interface {
	ObserveFetch(source, status string, rows int, took time.Duration)
}

// Options tunes a Collector.
type Options struct {
	BatchSize      int           // symbols per flush
	FlushPause     time.Duration // pause after each full batch
	HistoryDays    int           // calendar days of history requested
	RequestTimeout time.Duration // per-symbol request timeout
}

// DefaultOptions returns a 50-symbol batch, a 2s pause and 300 days of history.
func DefaultOptions() Options {
	return Options{BatchSize: 50, FlushPause: 2 * time.Second, HistoryDays: 300, RequestTimeout: 30 * time.Second}
}

// Report summarizes one run.
type Report struct {
	Requested     int // symbols in the master list after de-duplication
	Skipped       int // already in the store
	Fetched       int
	Empty         int
	Failed        int
	RowsAppended  int
	Batches       int
	FailedSymbols []string
}

// Collector runs the resumable fetch.
type Collector struct {
	Source   Source
	Sink     BarSink
	Opts     Options
	Log      *logger.Logger
	Observer Observer
	Now      func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(source Source, sink BarSink, opts Options, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{Source: source, Sink: sink, Opts: opts, Log: log, Now: time.Now}
}

// Window returns the [from, to] dates requested for every symbol.
func (c *Collector) Window() (from, to time.Time) {
	to = calendarDay(c.Now())
	from = to.AddDate(0, 0, -c.Opts.HistoryDays)
	return from, to
}

// Run fetches every symbol not yet in the sink. A failing or empty symbol is
// logged and skipped; it stays eligible for the next run. Errors reading or
// writing the sink are fatal. On cancellation the pending batch is flushed
// before ctx.Err() is returned.
func (c *Collector) Run(ctx context.Context, symbols []string) (Report, error) {
	var rep Report

	existing, err := c.Sink.Symbols(ctx)
	if err != nil {
		return rep, fmt.Errorf("read existing symbols: %w", err)
	}

	work := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		rep.Requested++
		if _, done := existing[s]; done {
			rep.Skipped++
			continue
		}
		work = append(work, s)
	}

	from, to := c.Window()
	c.Log.Info("fetch started",
		logger.String("source", c.Source.Name()),
		logger.Int("requested", rep.Requested),
		logger.Int("already_stored", rep.Skipped),
		logger.Int("to_fetch", len(work)),
		logger.String("from", from.Format("2006-01-02")),
		logger.String("to", to.Format("2006-01-02")),
	)

	batchSize := c.Opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	var (
		pending        []model.Bar
		pendingSymbols int
	)
	flush := func() error {
		if pendingSymbols == 0 {
			return nil
		}
		n, err := c.Sink.Append(pending)
		if err != nil {
			return fmt.Errorf("append batch: %w", err)
		}
		rep.RowsAppended += n
		rep.Batches++
		c.Log.Info("batch appended", logger.Int("symbols", pendingSymbols), logger.Int("rows", n))
		pending, pendingSymbols = nil, 0
		return nil
	}

	for i, sym := range work {
		if err := ctx.Err(); err != nil {
			if ferr := flush(); ferr != nil {
				return rep, ferr
			}
			return rep, err
		}

		bars, err := c.fetchOne(ctx, sym, from, to)
		switch {
		case err != nil:
			rep.Failed++
			rep.FailedSymbols = append(rep.FailedSymbols, sym)
			c.Log.Warn("fetch failed", logger.String("symbol", sym), logger.Error(err))
			continue
		case len(bars) == 0:
			rep.Empty++
			c.Log.Warn("no data", logger.String("symbol", sym))
			continue
		}

		rep.Fetched++
		pending = append(pending, bars...)
		pendingSymbols++

		if pendingSymbols >= batchSize {
			if err := flush(); err != nil {
				return rep, err
			}
			if i < len(work)-1 {
				if err := pause(ctx, c.Opts.FlushPause); err != nil {
					return rep, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return rep, err
	}

	c.Log.Info("fetch finished",
		logger.Int("fetched", rep.Fetched),
		logger.Int("empty", rep.Empty),
		logger.Int("failed", rep.Failed),
		logger.Int("rows", rep.RowsAppended),
		logger.Int("batches", rep.Batches),
		logger.Strings("failed_symbols", rep.FailedSymbols),
	)
	return rep, nil
}

// fetchOne requests one symbol under the per-request timeout and maps the
// response onto canonical bars: symbol set, dates ascending and unique.
func (c *Collector) fetchOne(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	start := time.Now()
	if c.Opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Opts.RequestTimeout)
		defer cancel()
	}

	bars, err := c.Source.FetchDailyBars(ctx, symbol, from, to)
	bars = canonical(symbol, bars)

	if c.Observer != nil {
		status := StatusFetched
		switch {
		case err != nil:
			status = StatusFailed
		case len(bars) == 0:
			status = StatusEmpty
		}
		c.Observer.ObserveFetch(c.Source.Name(), status, len(bars), time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func canonical(symbol string, bars []model.Bar) []model.Bar {
	if len(bars) == 0 {
		return nil
	}
	out := make([]model.Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].Symbol = symbol
		out[i].Date = calendarDay(out[i].Date)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	// keep the last bar reported for a day
	uniq := out[:0]
	for _, b := range out {
		if n := len(uniq); n > 0 && uniq[n-1].Date.Equal(b.Date) {
			uniq[n-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	return uniq
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
