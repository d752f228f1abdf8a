package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

func classicTable(rows ...[]string) domain.RawTable {
	all := [][]string{
		{"SYMBOL", "SERIES", "OPEN", "HIGH", "LOW", "CLOSE", "LAST", "PREVCLOSE", "TOTTRDQTY", "TIMESTAMP", "ISIN"},
	}
	all = append(all, rows...)
	return domain.RawTable{Name: "test.csv", Rows: all}
}

func TestNew_ClassicHeader(t *testing.T) {
	tbl, err := New(domain.RawTable{Name: "t", Rows: [][]string{
		{"SYMBOL", "SERIES", "OPEN", "HIGH", "LOW", "CLOSE", "TTL_TRD_QNTY", "TIMESTAMP"},
	}})
	require.NoError(t, err)

	cols := tbl.Columns()
	assert.Equal(t, 0, cols[FieldSymbol])
	assert.Equal(t, 1, cols[FieldSeries])
	assert.Equal(t, 6, cols[FieldVolume])
	assert.Equal(t, 7, cols[FieldDate])
}

func TestNew_UdiffHeader(t *testing.T) {
	tbl, err := New(domain.RawTable{Name: "t", Rows: [][]string{
		{"TradDt", "BizDt", "TckrSymb", "SctySrs", "OpnPric", "HghPric", "LwPric", "ClsPric", "TtlTradgVol", "ISIN"},
	}})
	require.NoError(t, err)

	cols := tbl.Columns()
	assert.Equal(t, 2, cols[FieldSymbol])
	assert.Equal(t, 0, cols[FieldDate], "first of duplicate aliases wins")
	assert.Equal(t, 8, cols[FieldVolume])
}

func TestNew_HeaderBelowPreamble(t *testing.T) {
	tbl, err := New(domain.RawTable{Name: "t", Rows: [][]string{
		{"National Stock Exchange of India"},
		{},
		{"SYMBOL", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME"},
		{"TCS", "3500", "3550", "3480", "3520", "100000"},
	}})
	require.NoError(t, err)

	it := tbl.Rows()
	require.True(t, it.Next())
	require.NoError(t, it.Err())
	assert.Equal(t, "TCS", it.Record().SymbolCode)
	assert.False(t, it.Next())
}

func TestNew_NoHeader(t *testing.T) {
	_, err := New(domain.RawTable{Name: "bad.csv", Rows: [][]string{
		{"TCS", "3500", "3550"},
		{"INFY", "1500", "1520"},
	}})
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeFormat, apperrors.TypeOf(err))
}

func TestRows_ParsesFields(t *testing.T) {
	tbl, err := New(classicTable(
		[]string{"RELIANCE", "EQ", "2,950.00", "2,975.50", "2,940.10", "2,960.25", "2960", "2948", "1,234,567", "01-APR-2024", "INE002A01018"},
	))
	require.NoError(t, err)

	it := tbl.Rows()
	require.True(t, it.Next())
	require.NoError(t, it.Err())

	rec := it.Record()
	assert.Equal(t, "RELIANCE", rec.SymbolCode)
	assert.Equal(t, "EQ", rec.Series)
	assert.Equal(t, "INE002A01018", rec.ISIN)
	assert.Equal(t, 2950.00, rec.Open)
	assert.Equal(t, 2975.50, rec.High)
	assert.Equal(t, 2940.10, rec.Low)
	assert.Equal(t, 2960.25, rec.Close)
	assert.Equal(t, int64(1234567), rec.Volume)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, 2, rec.Line)
}

func TestRows_BadRowDoesNotAbort(t *testing.T) {
	tbl, err := New(classicTable(
		[]string{"TCS", "EQ", "3500", "3550", "3480", "3520", "", "", "100000", "01-Apr-2024", ""},
		[]string{"BROKEN", "EQ", "not-a-number", "3550", "3480", "3520", "", "", "100000", "01-Apr-2024", ""},
		[]string{"", "EQ", "100", "110", "90", "105", "", "", "500", "01-Apr-2024", ""},
		[]string{"INFY", "EQ", "1500", "1520", "1490", "1510", "", "", "200000", "01-Apr-2024", ""},
	))
	require.NoError(t, err)

	var good, bad int
	for it := tbl.Rows(); it.Next(); {
		if it.Err() != nil {
			bad++
			assert.Equal(t, apperrors.TypeRow, apperrors.TypeOf(it.Err()))
			continue
		}
		good++
	}
	assert.Equal(t, 2, good)
	assert.Equal(t, 2, bad)
}

func TestRows_SkipsBlankRows(t *testing.T) {
	tbl, err := New(classicTable(
		[]string{"TCS", "EQ", "3500", "3550", "3480", "3520", "", "", "100000", "01-Apr-2024", ""},
		[]string{},
		[]string{"", "", "", ""},
		[]string{"INFY", "EQ", "1500", "1520", "1490", "1510", "", "", "200000", "01-Apr-2024", ""},
	))
	require.NoError(t, err)

	var n int
	for it := tbl.Rows(); it.Next(); {
		require.NoError(t, it.Err())
		n++
	}
	assert.Equal(t, 2, n)
}

func TestRows_Restartable(t *testing.T) {
	tbl, err := New(classicTable(
		[]string{"TCS", "EQ", "3500", "3550", "3480", "3520", "", "", "100000", "01-Apr-2024", ""},
		[]string{"INFY", "EQ", "1500", "1520", "1490", "1510", "", "", "200000", "01-Apr-2024", ""},
	))
	require.NoError(t, err)

	count := func() int {
		n := 0
		for it := tbl.Rows(); it.Next(); {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count(), "a fresh iterator must start from the top")
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"2950.00", 2950.00, false},
		{"2,950.00", 2950.00, false},
		{"1,23,456.75", 123456.75, false},
		{"  42 ", 42, false},
		{"", 0, true},
		{"-", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseNumber(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseVolume_FloatRendering(t *testing.T) {
	v, err := parseVolume("1234567.0")
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), v)
}

func TestParseDate_Layouts(t *testing.T) {
	want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"01-Apr-2024", "01-APR-2024", "2024-04-01", "01-04-2024", "01/04/2024"} {
		got, err := parseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := parseDate("April 1st 2024")
	assert.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "ttl trd qnty", normalizeHeader("TTL_TRD_QNTY"))
	assert.Equal(t, "ttl trd qnty", normalizeHeader("  Ttl-Trd  Qnty "))
	assert.Equal(t, "opnpric", normalizeHeader("OpnPric"))
}
