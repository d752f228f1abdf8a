package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indistocks/internal/config"
	apperrors "indistocks/internal/errors"
)

var testDate = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func testClient(t *testing.T, url string, cache bool) *Client {
	t.Helper()

	src := config.SourceConfig{
		ArchiveURL:     url + "/bhav_{date}.zip",
		DateLayout:     "02012006",
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
	}
	dl := config.DownloadConfig{
		MinInterval: time.Millisecond,
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		CacheRaw:    cache,
	}

	var paths *config.Paths
	if cache {
		p, err := config.NewPaths(config.PathsConfig{DataDir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, p.EnsureDirectories())
		paths = p
	}
	return NewClient(src, dl, paths, nil)
}

func TestURLFor(t *testing.T) {
	c := testClient(t, "http://example.com", false)
	assert.Equal(t, "http://example.com/bhav_01042024.zip", c.URLFor(testDate))
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	data, err := c.Fetch(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data)
	assert.Equal(t, "test-agent", gotUA)
}

func TestNewClient_ZeroRetriesStillFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	src := config.SourceConfig{
		ArchiveURL:     srv.URL + "/bhav_{date}.zip",
		DateLayout:     "02012006",
		RequestTimeout: 5 * time.Second,
	}
	c := NewClient(src, config.DownloadConfig{MinInterval: time.Millisecond}, nil, nil)

	data, err := c.Fetch(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data, "an unset retry limit must not short-circuit the fetch")
}

func TestFetch_NotFoundIsNoData(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	_, err := c.Fetch(context.Background(), testDate)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "holidays must not be retried")
}

func TestFetch_HTMLBodyIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>file not available</html>"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	_, err := c.Fetch(context.Background(), testDate)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	data, err := c.Fetch(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	_, err := c.Fetch(context.Background(), testDate)
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeNetwork, apperrors.TypeOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_RateLimitedIsRetryable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	_, err := c.Fetch(context.Background(), testDate)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_CacheRoundTrip(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, true)

	data, err := c.Fetch(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data)

	// The archive landed in the year/month cache layout.
	cached, err := os.ReadFile(c.paths.ArchivePath(testDate))
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), cached)

	// Second fetch is served from disk.
	data, err = c.Fetch(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchRange_SkipsAndReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Tuesday's archive is missing; the rest succeed.
		if r.URL.Path == "/bhav_02042024.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	cal := NewCalendar(nil)

	var events []Event
	// Mon Apr 1 through Sun Apr 7, 2024: five trading days.
	results := c.FetchRange(context.Background(), cal,
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC),
		func(ev Event) { events = append(events, ev) })

	require.Len(t, results, 5)
	require.Len(t, events, 5)
	assert.Equal(t, "downloaded", events[0].Status)
	assert.Equal(t, "skipped", events[1].Status)
	assert.ErrorIs(t, results[1].Err, apperrors.ErrNoData)
	assert.Equal(t, "downloaded", events[4].Status)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(t, srv.URL, false)
	_, err := c.Fetch(ctx, testDate)
	assert.Error(t, err)
}
