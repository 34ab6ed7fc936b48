// Package normalizer turns raw bar-store rows into typed, validated bars.
//
// Cleaning is lenient: a row whose date or close cannot be parsed is dropped
// silently and only counted in Stats. Numeric fields have thousands separators
// stripped before parsing; a field that still fails to parse is left undefined.
package normalizer

import (
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"TrendScout/internal/model"
)

// LayoutMonthName matches dates like "07-Apr-2025".
const LayoutMonthName = "2-Jan-2006"

// LayoutMonthNumber matches dates like "07-04-2025".
const LayoutMonthNumber = "2-1-2006"

// Rejection explains why a row produced no bar.
type Rejection string

const (
	Accepted     Rejection = ""
	RejectSymbol Rejection = "missing_symbol"
	RejectDate   Rejection = "bad_date"
	RejectClose  Rejection = "bad_close"
)

// Stats counts what happened to a batch of rows.
type Stats struct {
	Rows      int
	Kept      int
	BadSymbol int
	BadDate   int
	BadClose  int
	Duplicate int // later row for the same symbol and day replaced it
}

// Dropped returns the number of rejected rows.
func (s Stats) Dropped() int { return s.Rows - s.Kept }

// Result is a normalized batch, sorted by (symbol, date).
type Result struct {
	Bars   []model.Bar
	Layout string // date layout the batch was parsed with
	Stats  Stats
}

// Normalize parses rows into bars. Dates are tried as LayoutMonthName first;
// only if no row in the whole batch parses that way is LayoutMonthNumber used.
// When a symbol has several rows for one day, the last one in file order wins.
func Normalize(rows []model.RawRow) Result {
	layout := DetectLayout(rows)
	res := Result{Layout: layout, Bars: make([]model.Bar, 0, len(rows))}
	res.Stats.Rows = len(rows)

	for _, row := range rows {
		bar, rej := ParseRow(row, layout)
		switch rej {
		case Accepted:
			res.Bars = append(res.Bars, bar)
		case RejectSymbol:
			res.Stats.BadSymbol++
		case RejectDate:
			res.Stats.BadDate++
		case RejectClose:
			res.Stats.BadClose++
		}
	}

	SortBars(res.Bars)
	res.Bars = dedupeDays(res.Bars)
	res.Stats.Duplicate = res.Stats.Rows - res.Stats.BadSymbol - res.Stats.BadDate - res.Stats.BadClose - len(res.Bars)
	res.Stats.Kept = len(res.Bars)
	return res
}

// DetectLayout picks the date layout for a batch.
func DetectLayout(rows []model.RawRow) string {
	for _, row := range rows {
		if _, ok := ParseDate(row.Date, LayoutMonthName); ok {
			return LayoutMonthName
		}
	}
	return LayoutMonthNumber
}

// ParseRow converts one raw row using the given date layout.
func ParseRow(row model.RawRow, layout string) (model.Bar, Rejection) {
	symbol := strings.TrimSpace(row.Symbol)
	if symbol == "" {
		return model.Bar{}, RejectSymbol
	}
	date, ok := ParseDate(row.Date, layout)
	if !ok {
		return model.Bar{}, RejectDate
	}
	closePrice := ParseNumber(row.Close)
	if !closePrice.Valid {
		return model.Bar{}, RejectClose
	}
	return model.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   ParseNumber(row.Open),
		High:   ParseNumber(row.High),
		Low:    ParseNumber(row.Low),
		Close:  closePrice.Float64,
		Volume: ParseVolume(row.Volume),
	}, Accepted
}

// ParseDate parses a calendar date, returning it at UTC midnight.
func ParseDate(s, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseNumber strips thousands separators and parses a decimal number.
// NaN and infinity spellings are not numbers and come back undefined.
func ParseNumber(s string) null.Float {
	d, ok := parseDecimal(s)
	if !ok {
		return null.Float{}
	}
	return null.FloatFrom(d.InexactFloat64())
}

// ParseVolume parses a traded quantity. Fractional or negative volumes are undefined.
func ParseVolume(s string) null.Int {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() || !d.IsInteger() {
		return null.Int{}
	}
	return null.IntFrom(d.IntPart())
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// SortBars orders bars by symbol, then date ascending. The sort is stable so
// rows sharing a (symbol, date) key keep their file order.
func SortBars(bars []model.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].Date.Before(bars[j].Date)
	})
}

// dedupeDays collapses sorted bars sharing a (symbol, date) key into the last
// of them.
func dedupeDays(bars []model.Bar) []model.Bar {
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Symbol == b.Symbol && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
