package domain

import "time"

// DayStatus is the per-date ingestion state machine value. A date moves
// Pending → Downloading → Extracting → Parsing → Validating → Upserting →
// Stored, with Failed reachable from any non-terminal state and Skipped
// reachable from Downloading (non-trading day or no data published).
type DayStatus string

const (
	DayPending     DayStatus = "pending"
	DayDownloading DayStatus = "downloading"
	DayExtracting  DayStatus = "extracting"
	DayParsing     DayStatus = "parsing"
	DayValidating  DayStatus = "validating"
	DayUpserting   DayStatus = "upserting"
	DayStored      DayStatus = "stored"
	DayFailed      DayStatus = "failed"
	DaySkipped     DayStatus = "skipped"
)

// Terminal reports whether the status admits no further transitions.
func (s DayStatus) Terminal() bool {
	return s == DayStored || s == DayFailed || s == DaySkipped
}

// DayResult summarizes one date's trip through the ingestion pipeline.
type DayResult struct {
	Date         time.Time `json:"date"`
	Status       DayStatus `json:"status"`
	RowsStored   int       `json:"rows_stored"`
	RowsRejected int       `json:"rows_rejected"`
	Reason       string    `json:"reason,omitempty"`
}

// BatchProgress is emitted after every processed date, at a rate bounded
// by the coordinator's lossy event channel.
type BatchProgress struct {
	BatchID      string    `json:"batch_id"`
	Date         time.Time `json:"date"`
	Phase        DayStatus `json:"phase"`
	Stored       int       `json:"stored"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	Total        int       `json:"total"`
	BytesFetched int64     `json:"bytes_fetched,omitempty"`
	ETA          string    `json:"eta,omitempty"`
}

// Done reports whether every date in the batch has reached a terminal state.
func (p BatchProgress) Done() bool {
	return p.Stored+p.Failed+p.Skipped >= p.Total
}

// DownloadDay is the persisted record of one date's fetch outcome, kept
// so an interrupted multi-day run can resume without re-downloading
// already-stored days.
type DownloadDay struct {
	Date      time.Time `json:"date"`
	Status    DayStatus `json:"status"`
	ByteSize  int64     `json:"byte_size,omitempty"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
