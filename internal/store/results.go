package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"TrendScout/internal/model"
)

// SignalHeader is the header of the buy-signal table.
var SignalHeader = []string{"Symbol", "Close", "Date", "Type", "RSI"}

// TrendHeader builds the uptrend table header for the given SMA windows,
// e.g. Symbol,Close,SMA_50,SMA_200.
func TrendHeader(shortWin, longWin int) []string {
	return []string{"Symbol", "Close", "SMA_" + strconv.Itoa(shortWin), "SMA_" + strconv.Itoa(longWin)}
}

// WriteSignals replaces the file at path with recs.
func WriteSignals(path string, recs []model.SignalRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Symbol,
			formatFloat(r.Close),
			r.Date.Format(OutputDateLayout),
			string(r.Type),
			formatFloat(r.RSI),
		})
	}
	return writeAtomic(path, SignalHeader, rows)
}

// WriteTrends replaces the file at path with recs.
func WriteTrends(path string, recs []model.TrendRecord, shortWin, longWin int) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Symbol,
			formatFloat(r.Close),
			formatFloat(r.SMAShort),
			formatFloat(r.SMALong),
		})
	}
	return writeAtomic(path, TrendHeader(shortWin, longWin), rows)
}

// writeAtomic writes to a temp file next to path and renames it into place,
// so readers see either the old table or the complete new one.
func writeAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
