// Package symbols synchronizes the local symbol table with the
// exchange's master symbol list.
package symbols

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "indistocks/internal/errors"
	"indistocks/pkg/contracts/domain"
)

// Reconciler applies one master-list snapshot atomically. Implemented
// by the storage engine.
type Reconciler interface {
	ReconcileSymbols(ctx context.Context, incoming []domain.Symbol) (domain.SyncSummary, error)
}

// Rebuilder is invalidated after every successful refresh. Implemented
// by the search cache.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Manager fetches and reconciles the master symbol list.
type Manager struct {
	http      *http.Client
	url       string
	userAgent string
	store     Reconciler
	rebuilder Rebuilder
	logger    *slog.Logger
}

// NewManager builds a directory manager. rebuilder may be nil when no
// search cache is attached (e.g. the one-shot CLI).
func NewManager(url, userAgent string, timeout time.Duration, store Reconciler, rebuilder Rebuilder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		http:      &http.Client{Timeout: timeout},
		url:       url,
		userAgent: userAgent,
		store:     store,
		rebuilder: rebuilder,
		logger:    logger.With(slog.String("component", "symbols")),
	}
}

// Refresh fetches the current master list, reconciles it against the
// stored symbol table in one atomic transaction, and triggers a search
// cache rebuild. New codes are inserted active; codes no longer listed
// are marked inactive, never deleted; ISIN and name changes are applied
// in place.
func (m *Manager) Refresh(ctx context.Context) (domain.SyncSummary, error) {
	body, err := m.fetch(ctx)
	if err != nil {
		return domain.SyncSummary{}, err
	}

	incoming, err := parseMasterList(body)
	if err != nil {
		return domain.SyncSummary{}, err
	}
	if len(incoming) == 0 {
		return domain.SyncSummary{}, apperrors.NewFormatError("master list contains no symbols", nil)
	}

	summary, err := m.store.ReconcileSymbols(ctx, incoming)
	if err != nil {
		return domain.SyncSummary{}, err
	}

	m.logger.Info("symbol directory refreshed",
		slog.Int("added", summary.Added),
		slog.Int("updated", summary.Updated),
		slog.Int("deactivated", summary.Deactivated),
		slog.Int("total", summary.Total))

	// The rebuild is mandatory after every refresh, so staleness is
	// bounded by the next refresh, never silently permanent.
	if m.rebuilder != nil {
		if err := m.rebuilder.Rebuild(ctx); err != nil {
			return summary, fmt.Errorf("refresh succeeded but cache rebuild failed: %w", err)
		}
	}
	return summary, nil
}

func (m *Manager) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build master list request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(time.Time{}, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(time.Time{},
			fmt.Errorf("master list status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(time.Time{}, err)
	}
	return body, nil
}

// parseMasterList reads the equity master CSV. Columns are matched by
// header name case-insensitively; the layout has carried SYMBOL,
// "NAME OF COMPANY" and ISIN NUMBER columns across revisions.
func parseMasterList(data []byte) ([]domain.Symbol, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewFormatError("unreadable master list", err)
	}
	if len(rows) < 2 {
		return nil, apperrors.NewFormatError("master list has no data rows", nil)
	}

	codeCol, nameCol, isinCol := -1, -1, -1
	for i, h := range rows[0] {
		switch normalized := strings.ToLower(strings.TrimSpace(h)); {
		case normalized == "symbol":
			codeCol = i
		case strings.Contains(normalized, "name of company") || normalized == "name":
			nameCol = i
		case strings.Contains(normalized, "isin"):
			isinCol = i
		}
	}
	if codeCol == -1 {
		return nil, apperrors.NewFormatError("master list missing symbol column", nil)
	}

	seen := make(map[string]bool, len(rows))
	out := make([]domain.Symbol, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if codeCol >= len(row) {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(row[codeCol]))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		sym := domain.Symbol{Code: code, Status: domain.ListingActive}
		if nameCol >= 0 && nameCol < len(row) {
			sym.Name = strings.TrimSpace(row[nameCol])
		}
		if isinCol >= 0 && isinCol < len(row) {
			sym.ISIN = strings.TrimSpace(row[isinCol])
		}
		out = append(out, sym)
	}
	return out, nil
}
