package domain

import "time"

// ListingStatus describes whether an instrument is currently tradable.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSuspended ListingStatus = "suspended"
	ListingDelisted  ListingStatus = "delisted"
)

// Symbol is one tradable instrument from the exchange master list.
// Symbols are never deleted, only marked inactive, so historical price
// rows always have a referent.
type Symbol struct {
	ID       int64         `json:"id"`
	Code     string        `json:"code" validate:"required"`
	ISIN     string        `json:"isin,omitempty"`
	Name     string        `json:"name,omitempty"`
	Status   ListingStatus `json:"status"`
	SyncedAt time.Time     `json:"synced_at"`
}

// Active reports whether the symbol appears in default listings.
func (s Symbol) Active() bool { return s.Status == ListingActive }

// PriceRecord is one trading-day observation for one symbol.
// ChangePct is derived at query time from the previous close and is
// never persisted.
type PriceRecord struct {
	SymbolCode string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	PrevClose  float64   `json:"prev_close,omitempty"`
	ChangePct  float64   `json:"change_pct,omitempty"`
}

// RawRecord is a parsed but not yet validated row from a daily archive.
type RawRecord struct {
	SymbolCode string
	ISIN       string
	Series     string
	Date       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Line       int
}

// RawTable is the tabular payload extracted from one daily archive.
type RawTable struct {
	Name string
	Rows [][]string
}

// SyncSummary reports the outcome of one symbol directory refresh.
type SyncSummary struct {
	Added       int `json:"added"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Total       int `json:"total"`
}

// SymbolMatch is one ranked search cache hit.
type SymbolMatch struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
	ID   int64  `json:"id"`
}

// RecentSymbol is one recently-viewed entry, most recent first.
type RecentSymbol struct {
	Code     string    `json:"code"`
	Name     string    `json:"name,omitempty"`
	ViewedAt time.Time `json:"viewed_at"`
}

// Day normalizes t to midnight UTC so (symbol, date) comparisons are
// stable regardless of the wall clock the value was parsed with.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
