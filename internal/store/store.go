// Package store reads and writes the CSV files of the pipeline: the
// append-only bar store, the master symbol list and the result tables.
package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
)

var (
	ErrStoreNotFound      = errors.New("bar store not found")
	ErrMasterListNotFound = errors.New("master list not found")
	ErrMissingColumn      = errors.New("missing required column")
)

// BarHeader is the fixed bar-store header.
var BarHeader = []string{"Symbol", "Date", "Open", "High", "Low", "Close", "Volume"}

// StoreDateLayout is the date layout used when appending bars.
const StoreDateLayout = "02-Jan-2006"

// OutputDateLayout is the date layout of the result tables.
const OutputDateLayout = "2006-01-02"

// columnIndex maps trimmed, lower-cased header names to their position.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[strings.ToLower(name)]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNullFloat(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func formatNullInt(v null.Int) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
