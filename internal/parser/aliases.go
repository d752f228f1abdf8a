package parser

import "strings"

// Field is a canonical column of the daily price table.
type Field string

const (
	FieldSymbol    Field = "symbol"
	FieldISIN      Field = "isin"
	FieldSeries    Field = "series"
	FieldDate      Field = "date"
	FieldOpen      Field = "open"
	FieldHigh      Field = "high"
	FieldLow       Field = "low"
	FieldClose     Field = "close"
	FieldPrevClose Field = "prev_close"
	FieldVolume    Field = "volume"
)

// requiredFields must all resolve for a table to be parseable.
var requiredFields = []Field{FieldSymbol, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// aliasVersions maps canonical fields to the header names each
// historical file layout used for them. Versions are ordered newest
// first; resolution consults all of them, so adding a layout is a new
// entry here, not a parser change.
var aliasVersions = []map[Field][]string{
	// Full bhavcopy layout (UDiFF era).
	{
		FieldSymbol:    {"tckrsymb", "symbol"},
		FieldISIN:      {"isin"},
		FieldSeries:    {"sctysrs", "series"},
		FieldDate:      {"traddt", "bizdt"},
		FieldOpen:      {"opnpric"},
		FieldHigh:      {"hghpric"},
		FieldLow:       {"lwpric"},
		FieldClose:     {"clspric", "lastpric"},
		FieldPrevClose: {"prvsclsgpric"},
		FieldVolume:    {"ttltradgvol", "ttltradgqty"},
	},
	// Classic bhavcopy and security-wise historical CSV layouts.
	{
		FieldSymbol:    {"symbol", "security"},
		FieldISIN:      {"isin"},
		FieldSeries:    {"series"},
		FieldDate:      {"date", "timestamp", "trade date", "date1"},
		FieldOpen:      {"open", "open price"},
		FieldHigh:      {"high", "high price", "highest price"},
		FieldLow:       {"low", "low price", "lowest price"},
		FieldClose:     {"close", "close price", "closing price", "last traded price", "ltp", "last price", "last"},
		FieldPrevClose: {"prevclose", "prev close", "previous close", "prev closing price"},
		FieldVolume:    {"volume", "tottrdqty", "total traded quantity", "ttl trd qnty", "traded volume", "no of shares", "total trade quantity"},
	},
}

// normalizeHeader lowercases a header cell and collapses whitespace,
// underscores and dashes so "TTL_TRD_QNTY" and "Ttl Trd Qnty" resolve
// identically.
func normalizeHeader(h string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if r == ' ' || r == '\t' || r == '_' || r == '-' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// resolveField returns the canonical field a normalized header maps to.
func resolveField(normalized string) (Field, bool) {
	for _, version := range aliasVersions {
		for field, names := range version {
			for _, name := range names {
				if normalized == name {
					return field, true
				}
			}
		}
	}
	return "", false
}
