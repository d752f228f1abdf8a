// Package extractor unpacks raw daily archives into tabular form. It is
// pure: no filesystem side effects beyond what the caller caches.
package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Extract validates and unpacks one archive payload. Zip containers are
// CRC-verified during read; a bare CSV payload passes through, since
// some historical dates were published uncompressed. Anything else is
// an unsupported container.
func Extract(date time.Time, data []byte) (domain.RawTable, error) {
	switch {
	case len(data) == 0:
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, fmt.Errorf("empty archive"))
	case bytes.HasPrefix(data, zipMagic):
		return extractZip(date, data)
	case looksLikeCSV(data):
		return readTable(date, "inline.csv", data)
	default:
		return domain.RawTable{}, apperrors.NewUnsupportedFormatError(date, "unrecognized container format")
	}
}

func extractZip(date time.Time, data []byte) (domain.RawTable, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, err)
	}

	entry := pickEntry(zr)
	if entry == nil {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, fmt.Errorf("archive contains no data file"))
	}

	rc, err := entry.Open()
	if err != nil {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, err)
	}
	defer rc.Close()

	// io.ReadAll verifies the entry's CRC32 at EOF.
	payload, err := io.ReadAll(rc)
	if err != nil {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, err)
	}

	return readTable(date, entry.Name, payload)
}

// pickEntry chooses the tabular payload: the first CSV entry, falling
// back to the largest file in the archive.
func pickEntry(zr *zip.Reader) *zip.File {
	var largest *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			return f
		}
		if largest == nil || f.UncompressedSize64 > largest.UncompressedSize64 {
			largest = f
		}
	}
	return largest
}

func readTable(date time.Time, name string, payload []byte) (domain.RawTable, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, err)
	}
	if len(rows) == 0 {
		return domain.RawTable{}, apperrors.NewCorruptArchiveError(date, fmt.Errorf("archive payload %s is empty", name))
	}
	return domain.RawTable{Name: name, Rows: rows}, nil
}

// looksLikeCSV sniffs for a plausible text header line.
func looksLikeCSV(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if !utf8.Valid(head) {
		return false
	}
	line, _, _ := strings.Cut(string(head), "\n")
	return strings.Count(line, ",") >= 2
}
