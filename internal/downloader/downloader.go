// Package downloader fetches one archive per trading day from the
// upstream source, with a minimum inter-request delay, bounded
// exponential-backoff retry on transient failures, and an optional
// on-disk cache of raw archives organized by year/month.
package downloader

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"indistocks/internal/config"
	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

// Client downloads daily archives.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	urlTmpl    string
	dateLayout string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	paths      *config.Paths
	cacheRaw   bool
	logger     *slog.Logger
}

// NewClient builds a downloader from configuration. paths may be nil to
// disable the raw-archive cache.
func NewClient(src config.SourceConfig, dl config.DownloadConfig, paths *config.Paths, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	interval := dl.MinInterval
	if interval <= 0 {
		interval = 350 * time.Millisecond
	}
	retries := dl.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Client{
		http:       &http.Client{Timeout: src.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		urlTmpl:    src.ArchiveURL,
		dateLayout: src.DateLayout,
		userAgent:  src.UserAgent,
		maxRetries: retries,
		backoff:    dl.BackoffBase,
		paths:      paths,
		cacheRaw:   dl.CacheRaw && paths != nil,
		logger:     logger.With(slog.String("component", "downloader")),
	}
}

// URLFor renders the archive URL for one trading date.
func (c *Client) URLFor(date time.Time) string {
	return strings.ReplaceAll(c.urlTmpl, "{date}", strings.ToUpper(date.Format(c.dateLayout)))
}

// Fetch returns the raw archive bytes for one trading date. A cached
// archive is served without touching the network. A not-found response
// means no data was published for the date (holiday) and surfaces as
// ErrNoData, not a failure. Transient failures are retried with
// exponential backoff up to the configured limit.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]byte, error) {
	date = domain.Day(date)

	if c.cacheRaw {
		if data, err := os.ReadFile(c.paths.ArchivePath(date)); err == nil && len(data) > 0 {
			c.logger.Debug("serving archive from cache",
				slog.String("date", date.Format("2006-01-02")),
				slog.Int("size", len(data)))
			return data, nil
		}
	}

	url := c.URLFor(date)
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, err := c.fetchOnce(ctx, url, date)
		if err == nil {
			if c.cacheRaw {
				c.writeCache(date, data)
			}
			return data, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("archive fetch failed, will retry",
			slog.String("date", date.Format("2006-01-02")),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}

	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string, date time.Time) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewNetworkError(date, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", date.Format("2006-01-02"), apperrors.ErrNoData)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError(date)
	case resp.StatusCode >= 500:
		return nil, apperrors.NewNetworkError(date, fmt.Errorf("upstream status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewUnsupportedFormatError(date,
			fmt.Sprintf("unexpected status %s for %s", resp.Status, url))
	}

	// An HTML body on a 200 is the source's "file unavailable" page.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("%s: %w", date.Format("2006-01-02"), apperrors.ErrNoData)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(date, err)
	}
	return data, nil
}

func (c *Client) writeCache(date time.Time, data []byte) {
	path := c.paths.ArchivePath(date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.logger.Warn("failed to create cache directory", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("failed to cache archive",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// RangeResult is the outcome of one date within FetchRange.
type RangeResult struct {
	Date time.Time
	Data []byte
	Err  error
}

// FetchRange fetches every candidate trading day in [start, end] in
// chronological order, skipping weekends and configured holidays, and
// reporting an event per unit of work. onProgress must not block; pair
// it with a Slot when the consumer is slow.
func (c *Client) FetchRange(ctx context.Context, cal *Calendar, start, end time.Time, onProgress ProgressFunc) []RangeResult {
	notify := func(ev Event) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	var results []RangeResult
	for _, date := range cal.TradingDays(start, end) {
		if ctx.Err() != nil {
			break
		}
		data, err := c.Fetch(ctx, date)
		results = append(results, RangeResult{Date: date, Data: data, Err: err})

		status := "downloaded"
		switch {
		case stderrors.Is(err, apperrors.ErrNoData):
			status = "skipped"
		case err != nil:
			status = "failed"
		}
		notify(Event{Date: date, Bytes: int64(len(data)), Status: status})
	}
	return results
}
