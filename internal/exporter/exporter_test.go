package exporter

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"indistocks/internal/config"
	"indistocks/pkg/contracts/domain"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	paths, err := config.NewPaths(config.PathsConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	return New(paths, nil)
}

func sampleHistory() []domain.PriceRecord {
	return []domain.PriceRecord{
		{
			SymbolCode: "TCS",
			Date:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			Open:       3500, High: 3550, Low: 3480, Close: 3520,
			Volume: 100000,
		},
		{
			SymbolCode: "TCS",
			Date:       time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
			Open:       3520, High: 3560, Low: 3500, Close: 3540,
			Volume: 90000, PrevClose: 3520, ChangePct: 0.5682,
		},
	}
}

func TestExportCSV(t *testing.T) {
	e := testExporter(t)

	path, err := e.ExportCSV("TCS", sampleHistory())
	require.NoError(t, err)
	assert.FileExists(t, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, historyHeader, rows[0])
	assert.Equal(t, []string{"2024-04-01", "3500.00", "3550.00", "3480.00", "3520.00", "100000", "0.00"}, rows[1])
	assert.Equal(t, "0.57", rows[2][6])
}

func TestExportCSV_EmptyHistory(t *testing.T) {
	e := testExporter(t)

	path, err := e.ExportCSV("TCS", nil)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestExportXLSX(t *testing.T) {
	e := testExporter(t)

	path, err := e.ExportXLSX("TCS", sampleHistory())
	require.NoError(t, err)
	assert.FileExists(t, path)

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2024-04-01", rows[1][0])
	assert.Equal(t, "3520", rows[1][4])
}
