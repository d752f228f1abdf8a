// Package ingestion orchestrates the per-day pipeline: download,
// extract, parse, validate, upsert. One batch runs at a time; each
// date moves through its own state machine and a failed day never
// aborts the rest of the batch.
package ingestion

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"indistocks/internal/downloader"
	apperrors "indistocks/internal/errors"
	"indistocks/internal/extractor"
	"indistocks/internal/infrastructure"
	"indistocks/internal/parser"
	"indistocks/internal/storage"
	"indistocks/internal/validator"
	"indistocks/pkg/contracts/domain"
)

// Fetcher supplies archive bytes for one trading date. Implemented by
// the downloader; faked in tests.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) ([]byte, error)
}

// Config tunes coordinator policy.
type Config struct {
	// AutoRegisterSymbols registers placeholder symbols for unknown
	// codes instead of rejecting their rows.
	AutoRegisterSymbols bool
	// MaxTxRetries bounds upsert retries before a day is marked failed.
	MaxTxRetries int
}

// Coordinator owns the ingestion run lifecycle. At most one batch is
// active at a time; a second request fails fast with
// ErrIngestionInProgress rather than queuing silently.
type Coordinator struct {
	store    *storage.Store
	fetcher  Fetcher
	calendar *downloader.Calendar
	validate *validator.Validator
	cfg      Config
	metrics  *infrastructure.Metrics
	logger   *slog.Logger
	events   *Emitter

	stateMu sync.Mutex
	running bool
	current *BatchState
	cancel  context.CancelFunc
}

// New builds a coordinator. metrics may be nil.
func New(store *storage.Store, fetcher Fetcher, cal *downloader.Calendar, v *validator.Validator, cfg Config, metrics *infrastructure.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = 3
	}
	return &Coordinator{
		store:    store,
		fetcher:  fetcher,
		calendar: cal,
		validate: v,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "ingestion")),
		events:   NewEmitter(),
	}
}

// Events is the bounded progress stream consumed by the UI.
func (c *Coordinator) Events() <-chan domain.BatchProgress {
	return c.events.Events()
}

// Status reports the current (or most recent) batch, if any.
func (c *Coordinator) Status() (domain.BatchProgress, []domain.DayResult, bool) {
	c.stateMu.Lock()
	batch := c.current
	c.stateMu.Unlock()
	if batch == nil {
		return domain.BatchProgress{}, nil, false
	}
	return batch.Progress(time.Time{}, ""), batch.Results(), true
}

// Running reports whether a batch is active.
func (c *Coordinator) Running() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.running
}

// Ingest starts an asynchronous batch over [start, end] and returns its
// id. Fails with ErrIngestionInProgress while another batch is active.
// The batch outlives the caller's context; only Cancel stops it.
func (c *Coordinator) Ingest(ctx context.Context, start, end time.Time) (string, error) {
	batch, runCtx, err := c.acquire(context.WithoutCancel(ctx), start, end)
	if err != nil {
		return "", err
	}
	go func() {
		defer c.release()
		c.runBatch(runCtx, batch)
	}()
	return batch.ID(), nil
}

// Run executes a batch synchronously and returns the per-day results.
// Used by the one-shot CLI.
func (c *Coordinator) Run(ctx context.Context, start, end time.Time) ([]domain.DayResult, error) {
	batch, runCtx, err := c.acquire(ctx, start, end)
	if err != nil {
		return nil, err
	}
	defer c.release()
	c.runBatch(runCtx, batch)
	return batch.Results(), nil
}

// Cancel requests cooperative cancellation of the active batch. The
// in-flight day either completes or is abandoned before its transaction
// commits; no half-committed day is possible.
func (c *Coordinator) Cancel() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) acquire(ctx context.Context, start, end time.Time) (*BatchState, context.Context, error) {
	if domain.Day(end).Before(domain.Day(start)) {
		return nil, nil, fmt.Errorf("end date %s before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.running {
		return nil, nil, apperrors.ErrIngestionInProgress
	}

	dates := c.calendar.TradingDays(start, end)
	batch := newBatchState(uuid.NewString(), start, end, dates)
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.current = batch
	c.cancel = cancel
	return batch, runCtx, nil
}

func (c *Coordinator) release() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.running = false
	c.cancel = nil
}

func (c *Coordinator) runBatch(ctx context.Context, batch *BatchState) {
	results := batch.Results()
	c.logger.Info("ingestion batch started",
		slog.String("batch_id", batch.ID()),
		slog.Int("trading_days", len(results)))

	alreadyStored, err := c.store.StoredDates(ctx, batch.start, batch.end)
	if err != nil {
		c.logger.Warn("could not load stored dates, resuming from scratch",
			slog.String("error", err.Error()))
		alreadyStored = map[string]bool{}
	}

	known, err := c.store.SymbolIDsByCode(ctx)
	if err != nil {
		c.logger.Error("failed to load symbol universe", slog.String("error", err.Error()))
		known = map[string]int64{}
	}

	for _, day := range batch.days {
		// Cancellation is checked between dates, never mid-day.
		if ctx.Err() != nil {
			break
		}

		date := day.Result().Date
		key := date.Format("2006-01-02")

		if alreadyStored[key] {
			day.Skip("already stored by an earlier run")
			c.events.Publish(batch.Progress(date, domain.DaySkipped))
			continue
		}

		began := time.Now()
		c.processDay(ctx, batch, day, date, known)

		result := day.Result()
		c.recordOutcome(ctx, date, result)
		if c.metrics != nil {
			c.metrics.IngestDuration.Observe(time.Since(began).Seconds())
		}
		c.events.Publish(batch.Progress(date, result.Status))
	}

	stored, failed, skipped := batch.Counts()
	c.logger.Info("ingestion batch finished",
		slog.String("batch_id", batch.ID()),
		slog.Int("stored", stored),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped))
}

func (c *Coordinator) processDay(ctx context.Context, batch *BatchState, day *DayState, date time.Time, known map[string]int64) {
	log := c.logger.With(slog.String("date", date.Format("2006-01-02")))

	day.To(domain.DayDownloading)
	data, err := c.fetcher.Fetch(ctx, date)
	switch {
	case stderrors.Is(err, apperrors.ErrNoData):
		day.Skip("no data published for date")
		if c.metrics != nil {
			c.metrics.DaysSkipped.Inc()
		}
		return
	case err != nil:
		c.failDay(day, log, "download failed", err, 0)
		return
	}
	batch.AddBytes(int64(len(data)))
	if c.metrics != nil {
		c.metrics.DownloadBytes.Add(float64(len(data)))
	}

	day.To(domain.DayExtracting)
	table, err := extractor.Extract(date, data)
	if err != nil {
		c.failDay(day, log, "extraction failed", err, 0)
		return
	}

	day.To(domain.DayParsing)
	tbl, err := parser.New(table)
	if err != nil {
		c.failDay(day, log, "unparseable table", err, 0)
		return
	}

	var raws []domain.RawRecord
	rowErrors := 0
	for it := tbl.Rows(); it.Next(); {
		if rowErr := it.Err(); rowErr != nil {
			rowErrors++
			log.Debug("row rejected", slog.String("error", rowErr.Error()))
			continue
		}
		rec := it.Record()
		if rec.Date.IsZero() {
			rec.Date = date
		}
		raws = append(raws, rec)
	}
	raws = dedupeBySymbol(raws)

	day.To(domain.DayValidating)
	if c.cfg.AutoRegisterSymbols {
		for _, rec := range raws {
			if _, ok := known[rec.SymbolCode]; ok {
				continue
			}
			id, err := c.store.EnsureSymbol(ctx, rec.SymbolCode)
			if err != nil {
				log.Warn("failed to auto-register symbol",
					slog.String("symbol", rec.SymbolCode),
					slog.String("error", err.Error()))
				continue
			}
			known[rec.SymbolCode] = id
		}
	}

	lookup := func(code string) bool { _, ok := known[code]; return ok }
	records := make([]domain.PriceRecord, 0, len(raws))
	rejected := rowErrors
	for _, rec := range raws {
		pr, err := c.validate.Validate(rec, lookup)
		if err != nil {
			rejected++
			log.Debug("record rejected", slog.String("error", err.Error()))
			continue
		}
		records = append(records, pr)
	}

	if len(records) == 0 {
		c.failDay(day, log, fmt.Sprintf("no valid rows (%d rejected)", rejected), nil, rejected)
		return
	}

	day.To(domain.DayUpserting)
	var upsertErr error
	for attempt := 0; attempt < c.cfg.MaxTxRetries; attempt++ {
		upsertErr = c.store.UpsertDay(ctx, date, records)
		if upsertErr == nil || !apperrors.IsRetryable(upsertErr) {
			break
		}
		log.Warn("upsert failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.String("error", upsertErr.Error()))
	}
	if upsertErr != nil {
		c.failDay(day, log, "upsert failed", upsertErr, rejected)
		return
	}

	day.Store(len(records), rejected)
	if c.metrics != nil {
		c.metrics.DaysStored.Inc()
		c.metrics.RowsUpserted.Add(float64(len(records)))
		c.metrics.RowsRejected.Add(float64(rejected))
	}
	log.Info("day stored",
		slog.Int("rows", len(records)),
		slog.Int("rejected", rejected))
}

func (c *Coordinator) failDay(day *DayState, log *slog.Logger, reason string, cause error, rejected int) {
	if cause != nil {
		reason = fmt.Sprintf("%s: %s", reason, cause.Error())
	}
	day.Fail(reason, rejected)
	if c.metrics != nil {
		c.metrics.DaysFailed.Inc()
	}
	log.Error("day failed", slog.String("reason", reason))
}

// recordOutcome persists the day's terminal status for resumability.
func (c *Coordinator) recordOutcome(ctx context.Context, date time.Time, result domain.DayResult) {
	if !result.Status.Terminal() {
		return
	}
	err := c.store.UpsertDownloadDay(ctx, domain.DownloadDay{
		Date:      date,
		Status:    result.Status,
		Error:     result.Reason,
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("failed to record download outcome",
			slog.String("date", date.Format("2006-01-02")),
			slog.String("error", err.Error()))
	}
}

// dedupeBySymbol keeps one row per symbol, preferring the EQ series
// when a symbol trades in several series on the same day.
func dedupeBySymbol(raws []domain.RawRecord) []domain.RawRecord {
	if len(raws) == 0 {
		return raws
	}
	index := make(map[string]int, len(raws))
	out := make([]domain.RawRecord, 0, len(raws))
	for _, rec := range raws {
		if i, ok := index[rec.SymbolCode]; ok {
			if out[i].Series != "EQ" && rec.Series == "EQ" {
				out[i] = rec
			}
			continue
		}
		index[rec.SymbolCode] = len(out)
		out = append(out, rec)
	}
	return out
}
