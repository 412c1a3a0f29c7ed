package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltmarket/catalog-scraper/internal/pipeline"
)

// CatalogReader is the read-side store surface the stats endpoint needs.
type CatalogReader interface {
	CountByCategory(ctx context.Context) (map[string]int, error)
}

type Handlers struct {
	runs    *Manager
	catalog CatalogReader
	logger  *slog.Logger
}

func NewHandlers(runs *Manager, catalog CatalogReader, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:    runs,
		catalog: catalog,
		logger:  logger,
	}
}

// CreateRunRequest represents a new extraction run request
type CreateRunRequest struct {
	Mode     string   `json:"mode"`
	Tokens   []string `json:"tokens"`
	MaxPages int      `json:"max_pages"`
}

// CreateRunResponse represents the run creation response
type CreateRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateRun handles new extraction run creation
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := pipeline.Mode(req.Mode)
	switch mode {
	case "":
		mode = pipeline.ModeLinks
	case pipeline.ModeLinks, pipeline.ModeDirect:
	default:
		h.respondError(w, http.StatusBadRequest, "mode must be 'links' or 'direct'")
		return
	}

	if req.MaxPages < 0 {
		h.respondError(w, http.StatusBadRequest, "max_pages must not be negative")
		return
	}

	run, err := h.runs.StartRun(pipeline.Options{Mode: mode, Tokens: req.Tokens, MaxPages: req.MaxPages})
	if err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateRunResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Message: "Run created successfully",
	})
}

// GetRun handles run status retrieval
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, ok := h.runs.GetRun(runID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

// ListRuns handles listing all runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.ListRuns())
}

// CancelRun handles stopping an active run
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if err := h.runs.CancelRun(runID); err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// StatsResponse represents catalog statistics
type StatsResponse struct {
	TotalProducts int            `json:"total_products"`
	ByCategory    map[string]int `json:"by_category"`
}

// GetStats handles catalog statistics retrieval
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.CountByCategory(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	h.respondJSON(w, http.StatusOK, StatsResponse{
		TotalProducts: total,
		ByCategory:    counts,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
