package ingestion

import (
	"sync"
	"time"

	"indistocks/pkg/contracts/domain"
)

// DayState tracks one date through the pipeline. A terminal status is
// entered exactly once; later transition attempts are ignored.
type DayState struct {
	mu           sync.Mutex
	date         time.Time
	status       domain.DayStatus
	rowsStored   int
	rowsRejected int
	reason       string
}

func newDayState(date time.Time) *DayState {
	return &DayState{date: domain.Day(date), status: domain.DayPending}
}

// To advances the state machine. Returns false if the state was already
// terminal.
func (d *DayState) To(status domain.DayStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.Terminal() {
		return false
	}
	d.status = status
	return true
}

// Store marks the day stored with its row counts.
func (d *DayState) Store(rowsStored, rowsRejected int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.Terminal() {
		return false
	}
	d.status = domain.DayStored
	d.rowsStored = rowsStored
	d.rowsRejected = rowsRejected
	return true
}

// Fail marks the day permanently failed with a human-readable reason.
func (d *DayState) Fail(reason string, rowsRejected int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.Terminal() {
		return false
	}
	d.status = domain.DayFailed
	d.reason = reason
	d.rowsRejected = rowsRejected
	return true
}

// Skip marks the day a non-trading day.
func (d *DayState) Skip(reason string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status.Terminal() {
		return false
	}
	d.status = domain.DaySkipped
	d.reason = reason
	return true
}

// Result snapshots the day.
func (d *DayState) Result() domain.DayResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return domain.DayResult{
		Date:         d.date,
		Status:       d.status,
		RowsStored:   d.rowsStored,
		RowsRejected: d.rowsRejected,
		Reason:       d.reason,
	}
}

// BatchState is the state of one ingestion run over a date range.
type BatchState struct {
	mu      sync.RWMutex
	id      string
	start   time.Time
	end     time.Time
	began   time.Time
	days    []*DayState
	bytes   int64
}

func newBatchState(id string, start, end time.Time, dates []time.Time) *BatchState {
	days := make([]*DayState, 0, len(dates))
	for _, d := range dates {
		days = append(days, newDayState(d))
	}
	return &BatchState{
		id:    id,
		start: domain.Day(start),
		end:   domain.Day(end),
		began: time.Now(),
		days:  days,
	}
}

// ID returns the batch identifier.
func (b *BatchState) ID() string { return b.id }

// AddBytes accumulates fetched archive bytes for progress reporting.
func (b *BatchState) AddBytes(n int64) {
	b.mu.Lock()
	b.bytes += n
	b.mu.Unlock()
}

// Counts tallies days by terminal status.
func (b *BatchState) Counts() (stored, failed, skipped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, d := range b.days {
		switch d.Result().Status {
		case domain.DayStored:
			stored++
		case domain.DayFailed:
			failed++
		case domain.DaySkipped:
			skipped++
		}
	}
	return
}

// Results snapshots all day results in chronological order.
func (b *BatchState) Results() []domain.DayResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.DayResult, 0, len(b.days))
	for _, d := range b.days {
		out = append(out, d.Result())
	}
	return out
}

// Progress builds the event emitted after each processed date.
func (b *BatchState) Progress(current time.Time, phase domain.DayStatus) domain.BatchProgress {
	stored, failed, skipped := b.Counts()

	b.mu.RLock()
	total := len(b.days)
	bytes := b.bytes
	began := b.began
	b.mu.RUnlock()

	p := domain.BatchProgress{
		BatchID:      b.id,
		Date:         current,
		Phase:        phase,
		Stored:       stored,
		Failed:       failed,
		Skipped:      skipped,
		Total:        total,
		BytesFetched: bytes,
	}

	done := stored + failed + skipped
	if done > 0 && done < total {
		elapsed := time.Since(began)
		remaining := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		p.ETA = remaining.Round(time.Second).String()
	}
	return p
}
