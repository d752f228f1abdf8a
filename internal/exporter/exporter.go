// Package exporter writes price history to CSV and Excel files in the
// exports directory.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"indistocks/internal/config"
	"indistocks/pkg/contracts/domain"
)

var historyHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume", "Change %"}

// Exporter writes history files for one symbol at a time.
type Exporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// New creates an exporter rooted at the configured exports directory.
func New(paths *config.Paths, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{paths: paths, logger: logger.With(slog.String("component", "exporter"))}
}

// ExportCSV writes a symbol's history as CSV and returns the file path.
func (e *Exporter) ExportCSV(code string, records []domain.PriceRecord) (string, error) {
	path := e.paths.ExportPath(fmt.Sprintf("%s_history.csv", code))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create exports directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(historyHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(historyRow(r)); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}

	e.logger.Info("history exported",
		slog.String("symbol", code),
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return path, nil
}

// ExportXLSX writes a symbol's history as an Excel workbook and returns
// the file path.
func (e *Exporter) ExportXLSX(code string, records []domain.PriceRecord) (string, error) {
	path := e.paths.ExportPath(fmt.Sprintf("%s_history.xlsx", code))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create exports directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "History"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, h := range historyHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, r := range records {
		values := []any{
			r.Date.Format("2006-01-02"), r.Open, r.High, r.Low, r.Close, r.Volume, r.ChangePct,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("history exported",
		slog.String("symbol", code),
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return path, nil
}

func historyRow(r domain.PriceRecord) []string {
	return []string{
		r.Date.Format("2006-01-02"),
		strconv.FormatFloat(r.Open, 'f', 2, 64),
		strconv.FormatFloat(r.High, 'f', 2, 64),
		strconv.FormatFloat(r.Low, 'f', 2, 64),
		strconv.FormatFloat(r.Close, 'f', 2, 64),
		strconv.FormatInt(r.Volume, 10),
		strconv.FormatFloat(r.ChangePct, 'f', 2, 64),
	}
}
