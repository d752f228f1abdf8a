package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "indistocks/internal/errors"
	"indistocks/internal/exporter"
	"indistocks/internal/search"
	"indistocks/internal/storage"
	"indistocks/internal/symbols"
	"indistocks/internal/websocket"
	"indistocks/pkg/contracts/domain"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	defaultHistoryDays = 90
)

// MarketHandler serves the symbol directory, price history, search and
// recently-viewed endpoints.
type MarketHandler struct {
	store     *storage.Store
	cache     *search.Cache
	directory *symbols.Manager
	exporter  *exporter.Exporter
	hub       *websocket.Hub
	logger    *slog.Logger
}

// NewMarketHandler creates the market-data handler.
func NewMarketHandler(store *storage.Store, cache *search.Cache, directory *symbols.Manager, exp *exporter.Exporter, hub *websocket.Hub, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		store:     store,
		cache:     cache,
		directory: directory,
		exporter:  exp,
		hub:       hub,
		logger:    logger.With(slog.String("component", "market_handler")),
	}
}

// Routes returns the market-data route tree.
func (h *MarketHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/symbols", h.ListSymbols)
	r.Post("/symbols/refresh", h.RefreshSymbols)
	r.Get("/search", h.Search)
	r.Get("/recent", h.Recent)

	r.Route("/symbols/{code}", func(r chi.Router) {
		r.Use(h.SymbolCtx)
		r.Get("/", h.GetSymbol)
		r.Get("/history", h.GetHistory)
		r.Post("/view", h.RecordView)
		r.Post("/export", h.Export)
	})

	return r
}

// SymbolCtx validates the code parameter before the per-symbol routes
// run.
func (h *MarketHandler) SymbolCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" || len(code) > 20 {
			render.Render(w, r, apperrors.InvalidParam("code", "Invalid symbol code"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListSymbols handles GET /api/symbols.
func (h *MarketHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	filter := storage.SymbolFilter{
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			render.Render(w, r, apperrors.InvalidParam("limit", "limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	syms, err := h.store.GetSymbols(r.Context(), filter)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   syms,
		"count":  len(syms),
	})
}

// GetSymbol handles GET /api/symbols/{code}.
func (h *MarketHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	sym, err := h.store.GetSymbolByCode(r.Context(), code)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"status": "success", "data": sym})
}

// GetHistory handles GET /api/symbols/{code}/history. Either an
// explicit from/to window or a trailing days count may be given; with
// neither, the most recent 90 rows are returned.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	records, apiErr := h.loadHistory(r, code)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"symbol": code,
		"data":   records,
		"count":  len(records),
	})
}

func (h *MarketHandler) loadHistory(r *http.Request, code string) ([]domain.PriceRecord, *apperrors.APIError) {
	q := r.URL.Query()
	fromRaw, toRaw := q.Get("from"), q.Get("to")

	if fromRaw != "" || toRaw != "" {
		// Either bound may be omitted for an open-ended window.
		var from, to time.Time
		if fromRaw != "" {
			parsed, err := parseDateParam(fromRaw)
			if err != nil {
				return nil, apperrors.InvalidParam("from", "from must be YYYY-MM-DD")
			}
			from = parsed
		}
		if toRaw != "" {
			parsed, err := parseDateParam(toRaw)
			if err != nil {
				return nil, apperrors.InvalidParam("to", "to must be YYYY-MM-DD")
			}
			to = parsed
		}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return nil, apperrors.InvalidParam("to", "to precedes from")
		}
		records, err := h.store.GetPriceHistory(r.Context(), code, from, to)
		if err != nil {
			return nil, apperrors.APIFromError(err)
		}
		return records, nil
	}

	days := defaultHistoryDays
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, apperrors.InvalidParam("days", "days must be a positive integer")
		}
		days = n
	}
	records, err := h.store.GetRecentHistory(r.Context(), code, days)
	if err != nil {
		return nil, apperrors.APIFromError(err)
	}
	return records, nil
}

// RecordView handles POST /api/symbols/{code}/view.
func (h *MarketHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if err := h.store.RecordView(r.Context(), code); err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"status": "success"})
}

// Recent handles GET /api/recent.
func (h *MarketHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			render.Render(w, r, apperrors.InvalidParam("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	recent, err := h.store.GetRecentlyViewed(r.Context(), limit)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   recent,
		"count":  len(recent),
	})
}

// Search handles GET /api/search against the in-memory index.
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		render.Render(w, r, apperrors.InvalidParam("q", "Query is required"))
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchLimit {
			render.Render(w, r, apperrors.InvalidParam("limit", "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	matches := h.cache.Search(q, limit)
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   matches,
		"count":  len(matches),
	})
}

// RefreshSymbols handles POST /api/symbols/refresh. The refresh is
// synchronous; master list fetches complete in seconds.
func (h *MarketHandler) RefreshSymbols(w http.ResponseWriter, r *http.Request) {
	summary, err := h.directory.Refresh(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if h.hub != nil {
		h.hub.BroadcastRefresh(summary)
	}
	render.JSON(w, r, map[string]any{"status": "success", "data": summary})
}

// Export handles POST /api/symbols/{code}/export?format=csv|xlsx and
// responds with the written file path.
func (h *MarketHandler) Export(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	records, apiErr := h.loadHistory(r, code)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}
	if len(records) == 0 {
		render.Render(w, r, apperrors.NewAPIError(http.StatusNotFound, "NO_DATA", "No price history to export"))
		return
	}

	var (
		path string
		err  error
	)
	switch format {
	case "csv":
		path, err = h.exporter.ExportCSV(code, records)
	case "xlsx":
		path, err = h.exporter.ExportXLSX(code, records)
	default:
		render.Render(w, r, apperrors.InvalidParam("format", "format must be csv or xlsx"))
		return
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"path":   path,
		"rows":   len(records),
	})
}

func (h *MarketHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrSymbolNotFound) {
		render.Render(w, r, apperrors.NewAPIError(http.StatusNotFound, "SYMBOL_NOT_FOUND", "Unknown symbol code"))
		return
	}
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	render.Render(w, r, apperrors.APIFromError(err))
}

func parseDateParam(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
