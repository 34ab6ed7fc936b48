// Package app wires the pipeline stages together for the command line and
// the scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendScout/internal/collector"
	"TrendScout/internal/config"
	"TrendScout/internal/logger"
	"TrendScout/internal/metrics"
	"TrendScout/internal/normalizer"
	"TrendScout/internal/notifier"
	"TrendScout/internal/recorder"
	"TrendScout/internal/scanner"
	"TrendScout/internal/store"
)

// App holds the long-lived dependencies of every stage.
type App struct {
	Cfg      *config.Config
	Log      *logger.Logger
	Store    *store.BarStore
	Source   collector.Source
	Recorder recorder.Recorder
	Metrics  *metrics.Recorder
	Notifier notifier.Notifier // nil disables notifications
	Now      func() time.Time
}

// New builds an App from configuration. The caller must Close it.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", logger.Error(err))
		} else {
			rec = sr
		}
	}

	a := &App{
		Cfg:      cfg,
		Log:      log,
		Store:    store.NewBarStore(cfg.Data.BarStore),
		Source:   src,
		Recorder: rec,
		Metrics:  metrics.New(),
		Now:      time.Now,
	}
	if cfg.TelegramEnabled() {
		a.Notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}
	return a, nil
}

// NewSource picks the historical-data provider.
func NewSource(cfg *config.Config) (collector.Source, error) {
	s := cfg.Source
	switch s.Provider {
	case "yahoo", "":
		y := collector.NewYahooSource(s.Suffix, cfg.Proxy, s.Timeout)
		if s.BaseURL != "" {
			y.BaseURL = s.BaseURL
		}
		return y, nil
	case "rest":
		return collector.NewRESTSource(s.BaseURL, s.APIKey, cfg.Proxy, s.Timeout), nil
	case "alpaca":
		return collector.NewAlpacaSource(s.APIKey, s.APISecret, s.BaseURL, s.Feed), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", s.Provider)
	}
}

// Close releases the recorder and flushes metrics.
func (a *App) Close() error {
	var errs []error
	if err := a.Metrics.WriteTextfile(a.Cfg.Metrics.TextfilePath); err != nil {
		errs = append(errs, err)
	}
	if err := a.Recorder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Fetch runs the resumable fetch pipeline for the master list.
func (a *App) Fetch(ctx context.Context) (collector.Report, error) {
	start := a.Now()
	rep, err := a.fetch(ctx)
	took := a.Now().Sub(start)

	a.Metrics.AddRowsAppended(rep.RowsAppended)
	a.Metrics.ObserveStage("fetch", took, err == nil, a.Now())

	run := &recorder.FetchRun{
		StartedAt:    start,
		Duration:     took,
		Source:       a.Source.Name(),
		Requested:    rep.Requested,
		Skipped:      rep.Skipped,
		Fetched:      rep.Fetched,
		Empty:        rep.Empty,
		Failed:       rep.Failed,
		RowsAppended: rep.RowsAppended,
		Batches:      rep.Batches,
	}
	if err != nil {
		run.Err = err.Error()
	}
	if rerr := a.Recorder.RecordFetch(run); rerr != nil {
		a.Log.Error("record fetch run", logger.Error(rerr))
	}
	return rep, err
}

func (a *App) fetch(ctx context.Context) (collector.Report, error) {
	symbols, err := store.ReadMasterList(a.Cfg.Data.MasterList, a.Cfg.Fetch.Series)
	if err != nil {
		return collector.Report{}, err
	}

	col := collector.NewCollector(a.Source, a.Store, collector.Options{
		BatchSize:      a.Cfg.Fetch.BatchSize,
		FlushPause:     a.Cfg.Fetch.FlushPause,
		HistoryDays:    a.Cfg.Fetch.HistoryDays,
		RequestTimeout: a.Cfg.Fetch.RequestTimeout,
	}, a.Log.With(logger.String("stage", "fetch")))
	col.Observer = a.Metrics
	col.Now = a.Now
	return col.Run(ctx, symbols)
}

// ScanSummary is a scan result plus normalization counts.
type ScanSummary struct {
	scanner.Result
	Rows normalizer.Stats
}

// Scan loads the bar store, evaluates every symbol and replaces both output
// tables. Nothing is written when the store cannot be read.
func (a *App) Scan(ctx context.Context) (ScanSummary, error) {
	start := a.Now()
	sum, err := a.scan(ctx)
	took := a.Now().Sub(start)
	a.Metrics.ObserveStage("scan", took, err == nil, a.Now())
	if err != nil {
		return sum, err
	}

	reasons := make(map[string]int, len(sum.Counts.SkipReasons))
	for r, n := range sum.Counts.SkipReasons {
		reasons[string(r)] = n
	}
	c := sum.Counts
	a.Metrics.ObserveScan(c.Success, c.Skipped, c.Failed, reasons, c.Signals, c.TrendMembers)

	if rerr := a.Recorder.RecordScan(&recorder.ScanRun{
		StartedAt:   start,
		Duration:    took,
		RowsRead:    sum.Rows.Rows,
		RowsDropped: sum.Rows.Dropped(),
		Symbols:     c.Symbols,
		Success:     c.Success,
		Skipped:     c.Skipped,
		Failed:      c.Failed,
		Signals:     sum.Signals,
		Trends:      sum.Trends,
	}); rerr != nil {
		a.Log.Error("record scan run", logger.Error(rerr))
	}
	return sum, nil
}

func (a *App) scan(ctx context.Context) (ScanSummary, error) {
	log := a.Log.With(logger.String("stage", "scan"))

	rows, err := a.Store.ReadRows(ctx)
	if err != nil {
		return ScanSummary{}, err
	}
	norm := normalizer.Normalize(rows)
	log.Info("bars loaded",
		logger.Int("rows", norm.Stats.Rows),
		logger.Int("kept", norm.Stats.Kept),
		logger.Int("bad_date", norm.Stats.BadDate),
		logger.Int("bad_close", norm.Stats.BadClose),
		logger.Int("duplicate_days", norm.Stats.Duplicate),
		logger.String("date_layout", norm.Layout),
	)

	sc := scanner.New(scanner.Options{
		Rules:         a.Cfg.Strategy,
		Workers:       a.Cfg.Scan.Workers,
		LogFailures:   a.Cfg.Scan.LogFailures,
		ProgressEvery: a.Cfg.Scan.ProgressEvery,
	}, log)
	res, err := sc.Scan(ctx, norm.Bars)
	if err != nil {
		return ScanSummary{}, err
	}

	if err := store.WriteSignals(a.Cfg.Data.SignalsOut, res.Signals); err != nil {
		return ScanSummary{}, fmt.Errorf("write signals: %w", err)
	}
	if err := store.WriteTrends(a.Cfg.Data.TrendOut, res.Trends, a.Cfg.Strategy.TrendShort, a.Cfg.Strategy.TrendLong); err != nil {
		return ScanSummary{}, fmt.Errorf("write trends: %w", err)
	}

	for _, sig := range res.Signals {
		log.Debug("buy signal",
			logger.String("symbol", sig.Symbol),
			logger.Float64("close", sig.Close),
			logger.Float64("rsi", sig.RSI),
		)
	}
	log.Info("scan finished",
		logger.Int("symbols", res.Counts.Symbols),
		logger.Int("skipped", res.Counts.Skipped),
		logger.Int("failed", res.Counts.Failed),
		logger.Int("buy_signals", res.Counts.Signals),
		logger.Int("uptrend", res.Counts.TrendMembers),
	)
	return ScanSummary{Result: res, Rows: norm.Stats}, nil
}

// Run is the daily job: fetch, then scan, then notify. A fatal fetch error
// stops the run before scanning.
func (a *App) Run(ctx context.Context) (ScanSummary, error) {
	rep, err := a.Fetch(ctx)
	if err != nil {
		a.notify(ctx, notifier.FormatError("fetch", err))
		return ScanSummary{}, fmt.Errorf("fetch: %w", err)
	}
	sum, err := a.Scan(ctx)
	if err != nil {
		a.notify(ctx, notifier.FormatError("scan", err))
		return ScanSummary{}, fmt.Errorf("scan: %w", err)
	}
	a.notify(ctx, notifier.FormatFetchReport(rep)+"\n"+notifier.FormatScanReport(a.Now(), sum.Result, a.Cfg.Telegram.MaxRows))
	return sum, nil
}

// Daily runs Run and discards the summary, for the scheduler.
func (a *App) Daily(ctx context.Context) error {
	_, err := a.Run(ctx)
	return err
}

// notify sends text when a notifier is configured. Failures are only logged.
func (a *App) notify(ctx context.Context, text string) {
	if a.Notifier == nil {
		return
	}
	if err := a.Notifier.SendWithRetry(ctx, text, a.Cfg.Telegram.MaxRetries); err != nil {
		a.Log.Error("send notification", logger.Error(err))
	}
}

// InspectReport describes the bar store's health.
type InspectReport struct {
	store.Stats
	TooManySymbols bool
}

// Inspect reports store size and date coverage and flags an implausible
// symbol count.
func (a *App) Inspect(ctx context.Context) (InspectReport, error) {
	if !a.Store.Exists() {
		return InspectReport{}, fmt.Errorf("%w: %s (run fetch first)", store.ErrStoreNotFound, a.Store.Path())
	}
	st, err := a.Store.Stats(ctx)
	if err != nil {
		return InspectReport{}, err
	}
	rep := InspectReport{Stats: st, TooManySymbols: st.UniqueSymbols > a.Cfg.Inspect.MaxSymbols}
	if rep.TooManySymbols {
		a.Log.Warn("unexpectedly many symbols in bar store",
			logger.Int("unique_symbols", st.UniqueSymbols),
			logger.Int("max_symbols", a.Cfg.Inspect.MaxSymbols),
		)
	}
	return rep, nil
}
