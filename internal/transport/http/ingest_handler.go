package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "indistocks/internal/errors"
	"indistocks/internal/ingestion"
	"indistocks/internal/storage"
)

// IngestHandler starts, observes and cancels ingestion batches.
type IngestHandler struct {
	coordinator *ingestion.Coordinator
	store       *storage.Store
	logger      *slog.Logger
}

// NewIngestHandler creates the ingestion handler.
func NewIngestHandler(coordinator *ingestion.Coordinator, store *storage.Store, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		coordinator: coordinator,
		store:       store,
		logger:      logger.With(slog.String("component", "ingest_handler")),
	}
}

// Routes returns the ingestion route tree.
func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Delete("/", h.Cancel)
	r.Get("/status", h.Status)
	return r
}

// IngestRequest is the POST /api/ingest body.
type IngestRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`

	start time.Time
	end   time.Time
}

// Bind validates the date range. A missing end defaults to the start
// date, so a single-day body needs only one field.
func (req *IngestRequest) Bind(r *http.Request) error {
	if req.Start == "" {
		return apperrors.InvalidParam("start", "start date is required")
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return apperrors.InvalidParam("start", "start must be YYYY-MM-DD")
	}
	req.start = start

	if req.End == "" {
		req.end = start
		return nil
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return apperrors.InvalidParam("end", "end must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return apperrors.InvalidParam("end", "end precedes start")
	}
	req.end = end
	return nil
}

// Start handles POST /api/ingest. The batch runs in the background; the
// response carries the batch id and progress streams over the
// WebSocket.
func (h *IngestHandler) Start(w http.ResponseWriter, r *http.Request) {
	req := &IngestRequest{}
	if err := render.Bind(r, req); err != nil {
		if apiErr, ok := err.(*apperrors.APIError); ok {
			render.Render(w, r, apiErr)
			return
		}
		render.Render(w, r, apperrors.ErrAPIInvalidRequest)
		return
	}

	batchID, err := h.coordinator.Ingest(r.Context(), req.start, req.end)
	if err != nil {
		render.Render(w, r, apperrors.APIFromError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "ingestion started",
		slog.String("batch_id", batchID),
		slog.String("start", req.Start),
		slog.String("end", req.end.Format("2006-01-02")))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"status":   "accepted",
		"batch_id": batchID,
	})
}

// Status handles GET /api/ingest/status.
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	progress, days, _ := h.coordinator.Status()
	render.JSON(w, r, map[string]any{
		"status":   "success",
		"running":  h.coordinator.Running(),
		"progress": progress,
		"days":     days,
	})
}

// Cancel handles DELETE /api/ingest. Cancellation is cooperative; the
// in-flight date finishes before the batch stops.
func (h *IngestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.coordinator.Running() {
		render.Render(w, r, apperrors.NewAPIError(http.StatusConflict, "NO_ACTIVE_INGESTION", "No ingestion in progress"))
		return
	}
	h.coordinator.Cancel()
	render.JSON(w, r, map[string]any{"status": "cancelling"})
}

// ListDownloads handles GET /api/downloads, newest first.
func (h *IngestHandler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			render.Render(w, r, apperrors.InvalidParam("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	days, err := h.store.ListDownloadDays(r.Context(), limit)
	if err != nil {
		render.Render(w, r, apperrors.APIFromError(err))
		return
	}
	render.JSON(w, r, map[string]any{
		"status": "success",
		"data":   days,
		"count":  len(days),
	})
}
