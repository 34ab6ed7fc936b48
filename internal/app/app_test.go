package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/guregu/null/v6"

	"TrendScout/internal/collector"
	"TrendScout/internal/config"
	"TrendScout/internal/logger"
	"TrendScout/internal/model"
	"TrendScout/internal/recorder"
	"TrendScout/internal/store"
)

var asOf = time.Date(2025, time.April, 30, 19, 0, 0, 0, time.UTC)

// crossing ends on asOf with a buy signal that is also an uptrend member.
func crossing(symbol string, volume int64) []model.Bar {
	end := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, 200)
	for i := range bars {
		c := 100.0
		if i%2 == 1 {
			c = 101
		}
		if i == len(bars)-1 {
			c = 104
		}
		bars[i] = model.Bar{
			Symbol: symbol,
			Date:   end.AddDate(0, 0, i-len(bars)+1),
			Close:  c,
			Volume: null.IntFrom(volume),
		}
	}
	return bars
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

type fakeRecorder struct {
	fetches []*recorder.FetchRun
	scans   []*recorder.ScanRun
}

func (f *fakeRecorder) RecordFetch(run *recorder.FetchRun) error {
	f.fetches = append(f.fetches, run)
	return nil
}

func (f *fakeRecorder) RecordScan(run *recorder.ScanRun) error {
	f.scans = append(f.scans, run)
	return nil
}

func (f *fakeRecorder) Close() error { return nil }

type fixture struct {
	app  *App
	cfg  *config.Config
	src  *collector.MockSource
	rec  *fakeRecorder
	note *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	if err := defaults.Set(cfg); err != nil {
		t.Fatal(err)
	}
	cfg.Data.BarStore = filepath.Join(dir, "data", "bars.csv")
	cfg.Data.MasterList = filepath.Join(dir, "EQUITY_L.csv")
	cfg.Data.SignalsOut = filepath.Join(dir, "out", "buy_signals.csv")
	cfg.Data.TrendOut = filepath.Join(dir, "out", "uptrend.csv")
	cfg.Database.SQLitePath = ""
	cfg.Fetch.FlushPause = 0
	cfg.Metrics.TextfilePath = filepath.Join(dir, "trendscout.prom")

	master := "SYMBOL,NAME OF COMPANY,SERIES\nACME,Acme Ltd,EQ\nTHIN,Thin Ltd,EQ\nBOND,Bond Co,BE\n"
	if err := os.WriteFile(cfg.Data.MasterList, []byte(master), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := &collector.MockSource{Data: map[string][]model.Bar{
		"ACME": crossing("ACME", 100000),
		"THIN": crossing("THIN", 10000),
	}}
	rec := &fakeRecorder{}
	note := &fakeNotifier{}
	a.Source = src
	a.Recorder = rec
	a.Notifier = note
	a.Now = func() time.Time { return asOf }
	return &fixture{app: a, cfg: cfg, src: src, rec: rec, note: note}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestRun_FetchThenScan(t *testing.T) {
	f := newFixture(t)
	sum, err := f.app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sum.Signals) != 1 || sum.Signals[0].Symbol != "ACME" || sum.Counts.TrendMembers != 1 {
		t.Errorf("unexpected summary: %+v", sum.Counts)
	}

	if calls := f.src.Calls(); len(calls) != 2 {
		t.Errorf("expected only EQ series to be fetched, got %v", calls)
	}

	signals := readFile(t, f.cfg.Data.SignalsOut)
	if !strings.HasPrefix(signals, "Symbol,Close,Date,Type,RSI\nACME,104,2025-04-30,Buy Signal,") {
		t.Errorf("unexpected signals file:\n%s", signals)
	}
	if strings.Contains(signals, "THIN") {
		t.Error("illiquid symbol must not signal")
	}
	trend := readFile(t, f.cfg.Data.TrendOut)
	if !strings.HasPrefix(trend, "Symbol,Close,SMA_50,SMA_200\nACME,104,") || strings.Contains(trend, "THIN") {
		t.Errorf("unexpected trend file:\n%s", trend)
	}

	if len(f.rec.fetches) != 1 || f.rec.fetches[0].Fetched != 2 || f.rec.fetches[0].RowsAppended != 400 {
		t.Errorf("unexpected fetch run: %+v", f.rec.fetches)
	}
	if len(f.rec.scans) != 1 {
		t.Fatalf("expected one scan run, got %d", len(f.rec.scans))
	}
	scan := f.rec.scans[0]
	if scan.Symbols != 2 || scan.Success != 1 || scan.Skipped != 1 || len(scan.Signals) != 1 {
		t.Errorf("unexpected scan run: %+v", scan)
	}
	if len(f.note.texts) != 1 || !strings.Contains(f.note.texts[0], "ACME") {
		t.Errorf("expected one report mentioning ACME, got %q", f.note.texts)
	}

	if err := f.app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if prom := readFile(t, f.cfg.Metrics.TextfilePath); !strings.Contains(prom, "trendscout_") {
		t.Errorf("expected metrics textfile, got:\n%s", prom)
	}
}

func TestRun_SecondRunFetchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.app.Daily(ctx); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, f.cfg.Data.BarStore)

	if err := f.app.Daily(ctx); err != nil {
		t.Fatal(err)
	}
	if after := readFile(t, f.cfg.Data.BarStore); after != before {
		t.Error("bar store changed on a second run")
	}
	if got := f.rec.fetches[1]; got.Skipped != 2 || got.RowsAppended != 0 {
		t.Errorf("unexpected second fetch run: %+v", got)
	}
	if len(f.src.Calls()) != 2 {
		t.Errorf("stored symbols must not be requested again, calls %v", f.src.Calls())
	}
}

func TestRun_FetchFailureStopsBeforeScan(t *testing.T) {
	f := newFixture(t)
	f.app.Cfg.Data.MasterList = filepath.Join(t.TempDir(), "missing.csv")

	_, err := f.app.Run(context.Background())
	if !errors.Is(err, store.ErrMasterListNotFound) {
		t.Fatalf("expected master list error, got %v", err)
	}
	if _, err := os.Stat(f.cfg.Data.SignalsOut); !os.IsNotExist(err) {
		t.Error("scan must not run after a failed fetch")
	}
	if len(f.rec.fetches) != 1 || f.rec.fetches[0].Err == "" {
		t.Errorf("failed fetch must be recorded with its error: %+v", f.rec.fetches)
	}
	if len(f.note.texts) != 1 || !strings.Contains(f.note.texts[0], "fetch") {
		t.Errorf("expected an error notification, got %q", f.note.texts)
	}
}

func TestScan_MissingStoreWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Scan(context.Background())
	if !errors.Is(err, store.ErrStoreNotFound) {
		t.Fatalf("expected store-not-found, got %v", err)
	}
	for _, p := range []string{f.cfg.Data.SignalsOut, f.cfg.Data.TrendOut} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s must not be written", p)
		}
	}
	if len(f.rec.scans) != 0 {
		t.Error("failed scan must not be recorded")
	}
}

func TestScan_CountsDroppedRows(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(filepath.Dir(f.cfg.Data.BarStore), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "Symbol,Date,Open,High,Low,Close,Volume\nACME,01-Apr-2025,,,,10,1000\nACME,garbage,,,,11,1000\nACME,02-Apr-2025,,,,n/a,1000\n"
	if err := os.WriteFile(f.cfg.Data.BarStore, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, err := f.app.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rows.Rows != 3 || sum.Rows.Dropped() != 2 {
		t.Errorf("unexpected row stats: %+v", sum.Rows)
	}
	if sum.Counts.Skipped != 1 || len(sum.Signals) != 0 {
		t.Errorf("unexpected counts: %+v", sum.Counts)
	}
	if got := readFile(t, f.cfg.Data.SignalsOut); got != "Symbol,Close,Date,Type,RSI\n" {
		t.Errorf("expected header-only signals file, got %q", got)
	}
}

func TestScan_DuplicateDayDoesNotDropSymbol(t *testing.T) {
	f := newFixture(t)
	bars := crossing("ACME", 100000)
	dup := bars[100]
	dup.Close = 100.5
	if _, err := f.app.Store.Append(append(bars, dup)); err != nil {
		t.Fatal(err)
	}

	sum, err := f.app.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rows.Duplicate != 1 || sum.Counts.Failed != 0 {
		t.Errorf("unexpected stats %+v, counts %+v", sum.Rows, sum.Counts)
	}
	if len(sum.Signals) != 1 || sum.Signals[0].Symbol != "ACME" {
		t.Errorf("expected ACME to still signal, got %+v", sum.Signals)
	}
}

func TestInspect(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	rep, err := f.app.Inspect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Rows != 400 || rep.UniqueSymbols != 2 || rep.TooManySymbols {
		t.Errorf("unexpected report: %+v", rep)
	}
	if got := rep.LastDate.Format("2006-01-02"); got != "2025-04-30" {
		t.Errorf("last date: got %s", got)
	}

	f.app.Cfg.Inspect.MaxSymbols = 1
	rep, err = f.app.Inspect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.TooManySymbols {
		t.Error("expected symbol-count warning")
	}
}

func TestInspect_MissingStore(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Inspect(context.Background()); !errors.Is(err, store.ErrStoreNotFound) {
		t.Fatalf("expected store-not-found, got %v", err)
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{provider: "yahoo", want: "yahoo"},
		{provider: "rest", want: "rest"},
		{provider: "alpaca", want: "alpaca"},
		{provider: "carrier-pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &config.Config{}
			if err := defaults.Set(cfg); err != nil {
				t.Fatal(err)
			}
			cfg.Source.Provider = tt.provider
			cfg.Source.BaseURL = "http://127.0.0.1:1"
			src, err := NewSource(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if src.Name() != tt.want {
				t.Errorf("got source %q, want %q", src.Name(), tt.want)
			}
		})
	}
}

func TestNew_SQLiteRecorder(t *testing.T) {
	cfg := &config.Config{}
	if err := defaults.Set(cfg); err != nil {
		t.Fatal(err)
	}
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	cfg.Metrics.TextfilePath = ""
	a, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Recorder.(*recorder.SQLiteRecorder); !ok {
		t.Errorf("expected sqlite recorder, got %T", a.Recorder)
	}
	if a.Notifier != nil {
		t.Error("notifier must stay nil without telegram credentials")
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
}
