package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"TrendScout/internal/model"
	"TrendScout/internal/normalizer"
)

// BarStore is an append-only CSV file of daily bars. Appends are serialized
// so rows from concurrent writers never interleave.
type BarStore struct {
	path string
	mu   sync.Mutex
}

func NewBarStore(path string) *BarStore {
	return &BarStore{path: path}
}

// Path returns the file location.
func (s *BarStore) Path() string { return s.path }

// Exists reports whether the store file is present.
func (s *BarStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// ReadRows returns every data row of the store as raw text.
// Only Symbol, Date and Close are required columns.
func (s *BarStore) ReadRows(ctx context.Context) ([]model.RawRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, s.path)
		}
		return nil, fmt.Errorf("open bar store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bar store header: %w", err)
	}
	idx := columnIndex(header)
	for _, col := range []string{"Symbol", "Date", "Close"} {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingColumn, col, s.path)
		}
	}

	var rows []model.RawRow
	for n := 0; ; n++ {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bar store: %w", err)
		}
		rows = append(rows, model.RawRow{
			Symbol: field(rec, idx, "Symbol"),
			Date:   field(rec, idx, "Date"),
			Open:   field(rec, idx, "Open"),
			High:   field(rec, idx, "High"),
			Low:    field(rec, idx, "Low"),
			Close:  field(rec, idx, "Close"),
			Volume: field(rec, idx, "Volume"),
		})
	}
	return rows, nil
}

// Symbols returns the set of symbols already present in the store. A missing
// store yields an empty set so a first fetch can start from scratch.
func (s *BarStore) Symbols(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.ReadRows(ctx)
	if errors.Is(err, ErrStoreNotFound) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, row := range rows {
		if sym := strings.TrimSpace(row.Symbol); sym != "" {
			set[sym] = struct{}{}
		}
	}
	return set, nil
}

// Append writes bars to the end of the store, creating it with the fixed
// header first if needed. It returns the number of rows written.
func (s *BarStore) Append(bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create store dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open bar store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat bar store: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(BarHeader); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}
	for _, b := range bars {
		rec := []string{
			b.Symbol,
			b.Date.Format(StoreDateLayout),
			formatNullFloat(b.Open),
			formatNullFloat(b.High),
			formatNullFloat(b.Low),
			formatFloat(b.Close),
			formatNullInt(b.Volume),
		}
		if err := w.Write(rec); err != nil {
			return 0, fmt.Errorf("write bar: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush bar store: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync bar store: %w", err)
	}
	return len(bars), nil
}

// Stats summarizes the store contents.
type Stats struct {
	Rows          int
	UniqueSymbols int
	ValidBars     int
	FirstDate     time.Time
	LastDate      time.Time
}

// Stats reads the whole store and reports its size and date coverage.
func (s *BarStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.ReadRows(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Rows: len(rows)}
	seen := make(map[string]struct{})
	for _, row := range rows {
		if sym := strings.TrimSpace(row.Symbol); sym != "" {
			seen[sym] = struct{}{}
		}
	}
	st.UniqueSymbols = len(seen)

	res := normalizer.Normalize(rows)
	st.ValidBars = len(res.Bars)
	for _, b := range res.Bars {
		if st.FirstDate.IsZero() || b.Date.Before(st.FirstDate) {
			st.FirstDate = b.Date
		}
		if b.Date.After(st.LastDate) {
			st.LastDate = b.Date
		}
	}
	return st, nil
}
