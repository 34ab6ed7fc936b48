package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadMasterList returns the symbols of the master list in file order with
// duplicates removed. Header names match case-insensitively. When the file
// has a SERIES column and series is non-empty, only rows of that series are
// kept.
func ReadMasterList(path, series string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMasterListNotFound, path)
		}
		return nil, fmt.Errorf("open master list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: Symbol in empty %s", ErrMissingColumn, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read master list header: %w", err)
	}
	idx := columnIndex(header)
	if _, ok := idx["symbol"]; !ok {
		return nil, fmt.Errorf("%w: Symbol in %s", ErrMissingColumn, path)
	}
	_, hasSeries := idx["series"]
	filter := hasSeries && strings.TrimSpace(series) != ""

	seen := make(map[string]struct{})
	var symbols []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read master list: %w", err)
		}
		if filter && !strings.EqualFold(strings.TrimSpace(field(rec, idx, "series")), strings.TrimSpace(series)) {
			continue
		}
		sym := strings.TrimSpace(field(rec, idx, "symbol"))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}
