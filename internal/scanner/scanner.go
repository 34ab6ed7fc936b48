// Package scanner runs the indicator and signal pipeline over every symbol
// of a normalized dataset and folds the per-symbol outcomes into one result.
package scanner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"TrendScout/internal/calculator"
	"TrendScout/internal/logger"
	"TrendScout/internal/model"
	"TrendScout/internal/strategy"
)

// Counts tallies outcomes of one scan.
type Counts struct {
	Symbols      int
	Success      int
	Skipped      int
	Failed       int
	Signals      int
	TrendMembers int
	SkipReasons  map[model.SkipReason]int
}

// Result is the aggregate of a scan. Signals, Trends and Outcomes keep the
// order in which symbols were first met in the input.
type Result struct {
	Signals  []model.SignalRecord
	Trends   []model.TrendRecord
	Outcomes []model.Outcome
	Counts   Counts
}

// Options tunes a Scanner.
type Options struct {
	Rules         strategy.Rules
	Workers       int  // <= 1 scans sequentially
	LogFailures   bool // log each failed symbol at WARN
	ProgressEvery int  // log progress every N symbols, 0 disables
}

// Scanner drives the Indicator Engine and Signal Detector per symbol.
type Scanner struct {
	opts Options
	log  *logger.Logger
}

func New(opts Options, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{opts: opts, log: log}
}

// Group partitions bars into per-symbol series. Groups appear in the order
// their symbol is first met and keep the bars' relative order.
func Group(bars []model.Bar) []model.SymbolSeries {
	index := make(map[string]int)
	var groups []model.SymbolSeries
	for _, b := range bars {
		i, ok := index[b.Symbol]
		if !ok {
			i = len(groups)
			index[b.Symbol] = i
			groups = append(groups, model.SymbolSeries{Symbol: b.Symbol})
		}
		groups[i].Bars = append(groups[i].Bars, b)
	}
	return groups
}

// Scan groups bars and evaluates every symbol. A failing symbol never stops
// the scan. Cancelling ctx stops scheduling new symbols and returns ctx.Err().
func (s *Scanner) Scan(ctx context.Context, bars []model.Bar) (Result, error) {
	groups := Group(bars)
	outcomes := make([]model.Outcome, len(groups))

	workers := s.opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.evaluate(groups[i])
				mu.Lock()
				done++
				s.progress(done, len(groups))
				mu.Unlock()
			}
		}()
	}

	var err error
feed:
	for i := range groups {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return Result{}, err
	}

	res := Fold(outcomes)
	if s.opts.LogFailures {
		for _, o := range res.Outcomes {
			if o.Status == model.OutcomeFailed {
				s.log.Warn("symbol failed", logger.String("symbol", o.Symbol), logger.Error(o.Err))
			}
		}
	}
	return res, nil
}

// ScanSeries evaluates one symbol. Any panic is turned into a Failed outcome.
func ScanSeries(series model.SymbolSeries, rules strategy.Rules) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.Outcome{
				Symbol: series.Symbol,
				Status: model.OutcomeFailed,
				Err:    fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}
		}
	}()

	if err := checkOrder(series); err != nil {
		return model.Outcome{Symbol: series.Symbol, Status: model.OutcomeFailed, Err: err}
	}
	if series.Len() < rules.MinBars {
		return model.Outcome{Symbol: series.Symbol, Status: model.OutcomeSkipped, Reason: model.SkipInsufficientHistory}
	}
	ind, err := calculator.Compute(series.Closes(), rules.Windows())
	if err != nil {
		return model.Outcome{Symbol: series.Symbol, Status: model.OutcomeFailed, Err: err}
	}
	return strategy.Evaluate(series, ind, rules)
}

func (s *Scanner) evaluate(series model.SymbolSeries) model.Outcome {
	return ScanSeries(series, s.opts.Rules)
}

func (s *Scanner) progress(done, total int) {
	if s.opts.ProgressEvery <= 0 {
		return
	}
	if done%s.opts.ProgressEvery == 0 || done == total {
		s.log.Info("scan progress", logger.Int("done", done), logger.Int("total", total))
	}
}

// checkOrder rejects series whose dates are not strictly increasing.
func checkOrder(series model.SymbolSeries) error {
	for i := 1; i < len(series.Bars); i++ {
		prev, cur := series.Bars[i-1].Date, series.Bars[i].Date
		if !cur.After(prev) {
			return fmt.Errorf("bar %d date %s not after %s", i, cur.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
	}
	return nil
}

// Fold aggregates outcomes in order. Records from non-success outcomes are ignored.
func Fold(outcomes []model.Outcome) Result {
	res := Result{
		Outcomes: outcomes,
		Counts:   Counts{Symbols: len(outcomes), SkipReasons: make(map[model.SkipReason]int)},
	}
	for _, o := range outcomes {
		switch o.Status {
		case model.OutcomeSuccess:
			res.Counts.Success++
			if o.Signal != nil {
				res.Signals = append(res.Signals, *o.Signal)
			}
			if o.Trend != nil {
				res.Trends = append(res.Trends, *o.Trend)
			}
		case model.OutcomeSkipped:
			res.Counts.Skipped++
			res.Counts.SkipReasons[o.Reason]++
		default:
			res.Counts.Failed++
		}
	}
	res.Counts.Signals = len(res.Signals)
	res.Counts.TrendMembers = len(res.Trends)
	return res
}
