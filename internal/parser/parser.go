// Package parser turns raw daily tables into typed records. Columns
// are identified by header name, not position, so the historical layout
// variations the exchange has published all map onto one record shape.
// Each row parses independently: a malformed row yields a row-scoped
// error and never aborts the rest of the file.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

// headerScanLimit bounds how deep into a file the header row may sit;
// some historical files carry preamble lines above it.
const headerScanLimit = 10

var dateLayouts = []string{"02-Jan-2006", "2006-01-02", "02-01-2006", "02/01/2006"}

// Table is a raw table whose columns have been resolved against the
// alias versions, ready for row iteration.
type Table struct {
	name      string
	rows      [][]string
	cols      map[Field]int
	dataStart int
}

// New locates the header row, resolves every recognizable column once,
// and verifies the required columns are present. A table with no
// resolvable header is a format error for the whole file.
func New(table domain.RawTable) (*Table, error) {
	limit := len(table.Rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		cols := resolveHeader(table.Rows[i])
		if !hasRequired(cols) {
			continue
		}
		return &Table{
			name:      table.Name,
			rows:      table.Rows,
			cols:      cols,
			dataStart: i + 1,
		}, nil
	}
	return nil, apperrors.NewFormatError(
		fmt.Sprintf("no recognizable header row in %s", table.Name), nil)
}

func resolveHeader(row []string) map[Field]int {
	cols := make(map[Field]int)
	for i, cell := range row {
		normalized := normalizeHeader(cell)
		if normalized == "" {
			continue
		}
		if field, ok := resolveField(normalized); ok {
			if _, taken := cols[field]; !taken {
				cols[field] = i
			}
		}
	}
	return cols
}

func hasRequired(cols map[Field]int) bool {
	for _, f := range requiredFields {
		if _, ok := cols[f]; !ok {
			return false
		}
	}
	return true
}

// Columns exposes the resolved column mapping.
func (t *Table) Columns() map[Field]int {
	out := make(map[Field]int, len(t.cols))
	for k, v := range t.cols {
		out[k] = v
	}
	return out
}

// Rows returns a fresh iterator over the data rows. The sequence is
// lazy, finite and restartable: call Rows again to iterate from the top.
func (t *Table) Rows() *RowIter {
	return &RowIter{t: t, idx: t.dataStart - 1}
}

// RowIter yields one result per data row: either a record or a
// row-scoped error, never both. Blank rows are skipped silently.
type RowIter struct {
	t   *Table
	idx int
	rec domain.RawRecord
	err error
}

// Next advances to the next non-blank row, returning false at the end
// of the table.
func (it *RowIter) Next() bool {
	for it.idx++; it.idx < len(it.t.rows); it.idx++ {
		row := it.t.rows[it.idx]
		if isBlank(row) {
			continue
		}
		it.rec, it.err = it.t.parseRow(it.idx, row)
		return true
	}
	return false
}

// Record returns the row parsed by the last Next. Valid only when Err
// is nil.
func (it *RowIter) Record() domain.RawRecord { return it.rec }

// Err returns the current row's error, if the row was malformed.
func (it *RowIter) Err() error { return it.err }

func (t *Table) parseRow(idx int, row []string) (domain.RawRecord, error) {
	line := idx + 1

	get := func(f Field) string {
		if i, ok := t.cols[f]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	code := strings.ToUpper(get(FieldSymbol))
	if code == "" {
		return domain.RawRecord{}, apperrors.NewRowError(line, "missing symbol code", nil)
	}

	rec := domain.RawRecord{
		SymbolCode: code,
		ISIN:       get(FieldISIN),
		Series:     strings.ToUpper(get(FieldSeries)),
		Line:       line,
	}

	var err error
	if rec.Open, err = parseNumber(get(FieldOpen)); err != nil {
		return domain.RawRecord{}, apperrors.NewRowError(line, "bad open price", err)
	}
	if rec.High, err = parseNumber(get(FieldHigh)); err != nil {
		return domain.RawRecord{}, apperrors.NewRowError(line, "bad high price", err)
	}
	if rec.Low, err = parseNumber(get(FieldLow)); err != nil {
		return domain.RawRecord{}, apperrors.NewRowError(line, "bad low price", err)
	}
	if rec.Close, err = parseNumber(get(FieldClose)); err != nil {
		return domain.RawRecord{}, apperrors.NewRowError(line, "bad close price", err)
	}
	if rec.Volume, err = parseVolume(get(FieldVolume)); err != nil {
		return domain.RawRecord{}, apperrors.NewRowError(line, "bad volume", err)
	}

	if raw := get(FieldDate); raw != "" {
		rec.Date, err = parseDate(raw)
		if err != nil {
			return domain.RawRecord{}, apperrors.NewRowError(line, "bad trade date", err)
		}
	}

	return rec, nil
}

// parseNumber tolerates thousands separators and surrounding whitespace.
func parseNumber(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("empty numeric field")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable number %q", s)
	}
	return v, nil
}

func parseVolume(s string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("empty volume field")
	}
	if v, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return v, nil
	}
	// Some layouts render volume as a float.
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable volume %q", s)
	}
	return int64(f), nil
}

func parseDate(s string) (time.Time, error) {
	// Month names appear as APR, Apr and apr across layouts.
	candidates := []string{s, titleCase(s)}
	for _, layout := range dateLayouts {
		for _, c := range candidates {
			if t, err := time.Parse(layout, c); err == nil {
				return domain.Day(t), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func titleCase(s string) string {
	lower := strings.ToLower(s)
	out := []byte(lower)
	upNext := true
	for i := range out {
		c := out[i]
		if c >= 'a' && c <= 'z' {
			if upNext {
				out[i] = c - 'a' + 'A'
				upNext = false
			}
			continue
		}
		upNext = true
	}
	return string(out)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
