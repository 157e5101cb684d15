package vapor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names of the tabular compound source. The header is a fixed external
// contract; column order is free and unrecognized columns are ignored.
const (
	ColumnName          = "Item"
	ColumnVaporEnthalpy = "Vap Enthalpy (kJ/mol)"
	ColumnBoilingPoint  = "T2 (C)"
	ColumnPressure      = "P2 (torr)"
)

// Source supplies the full set of compound records. The catalog reads a
// source at most once per session.
type Source interface {
	Records() ([]Compound, error)
}

// CSVSource reads compound records from a CSV file carrying the fixed column
// contract above.
type CSVSource struct {
	Path string
}

func (s CSVSource) Records() ([]Compound, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSource, err)
	}
	defer f.Close()

	recs, err := ReadCompounds(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return recs, nil
}

// ReadCompounds parses compound records from CSV data. Every record is
// validated; the first malformed cell or invariant violation aborts the read.
func ReadCompounds(r io.Reader) ([]Compound, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrDataSource, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	var idx [4]int
	for i, column := range []string{ColumnName, ColumnVaporEnthalpy, ColumnBoilingPoint, ColumnPressure} {
		j, ok := cols[column]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrDataSource, column)
		}
		idx[i] = j
	}

	var out []Compound
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDataSource, line, err)
		}

		c := Compound{Name: strings.TrimSpace(row[idx[0]])}
		if c.VaporEnthalpy, err = parseCell(row, idx[1], ColumnVaporEnthalpy, line); err != nil {
			return nil, err
		}
		if c.RefBoilingPoint, err = parseCell(row, idx[2], ColumnBoilingPoint, line); err != nil {
			return nil, err
		}
		if c.RefPressure, err = parseCell(row, idx[3], ColumnPressure, line); err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCell(row []string, col int, column string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: column %q: %v", ErrInvalidRecord, line, column, err)
	}
	return v, nil
}
