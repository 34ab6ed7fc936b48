package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"TrendScout/internal/model"
)

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := r.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRecordFetch(t *testing.T) {
	r := openTemp(t)
	err := r.RecordFetch(&FetchRun{
		StartedAt: time.Now(), Duration: 3 * time.Second, Source: "yahoo",
		Requested: 10, Skipped: 4, Fetched: 5, Failed: 1, RowsAppended: 1000, Batches: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := count(t, r, `SELECT rows_appended FROM fetch_runs WHERE source = ?`, "yahoo"); n != 1000 {
		t.Errorf("rows_appended: got %d", n)
	}
}

func TestRecordScan(t *testing.T) {
	r := openTemp(t)
	day := time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)
	run := &ScanRun{
		StartedAt: time.Now(), Duration: time.Second, RowsRead: 600, Symbols: 3, Success: 2, Skipped: 1,
		Signals: []model.SignalRecord{{Symbol: "ACME", Close: 104, Date: day, Type: model.SignalBuy, RSI: 60.35}},
		Trends: []model.TrendRecord{
			{Symbol: "ACME", Close: 104, SMAShort: 100.56, SMALong: 100.52},
			{Symbol: "RISE", Close: 269, SMAShort: 244.5, SMALong: 169.5},
		},
	}
	if err := r.RecordScan(run); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordScan(&ScanRun{StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if n := count(t, r, `SELECT COUNT(*) FROM scan_runs`); n != 2 {
		t.Errorf("scan_runs: got %d", n)
	}
	if n := count(t, r, `SELECT COUNT(*) FROM buy_signals WHERE symbol = ? AND bar_date = ?`, "ACME", "2025-04-30"); n != 1 {
		t.Errorf("buy_signals: got %d", n)
	}
	if n := count(t, r, `SELECT COUNT(*) FROM uptrend_members WHERE scan_id = (SELECT MIN(id) FROM scan_runs)`); n != 2 {
		t.Errorf("uptrend_members: got %d", n)
	}
	if n := count(t, r, `SELECT trends FROM scan_runs ORDER BY id LIMIT 1`); n != 2 {
		t.Errorf("trend count column: got %d", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	if err := rec.RecordScan(&ScanRun{}); err != nil {
		t.Error(err)
	}
	if err := rec.Close(); err != nil {
		t.Error(err)
	}
}
