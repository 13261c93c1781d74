package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/whalewatch/engine/internal/domain"
)

// SignalService defines the methods that the signals handler requires.
type SignalService interface {
	GetLatest(ctx context.Context) (domain.SignalBatch, error)
	History(ctx context.Context, opts domain.ListOpts) ([]domain.SignalResult, error)
	RunPass(ctx context.Context) (domain.SignalBatch, error)
}

// SignalsHandler serves the signal API endpoints.
type SignalsHandler struct {
	svc    SignalService
	logger *slog.Logger
}

// NewSignalsHandler creates a SignalsHandler with the given service and logger.
func NewSignalsHandler(svc SignalService, logger *slog.Logger) *SignalsHandler {
	return &SignalsHandler{svc: svc, logger: logHandler(logger, "signals")}
}

// GetLatest returns the most recent computed batch. The optional
// min_percentile query parameter filters results below the given percentile.
// GET /api/signals?min_percentile=90
func (h *SignalsHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	batch, err := h.svc.GetLatest(r.Context())
	if errors.Is(err, domain.ErrNoBatch) {
		writeError(w, http.StatusNotFound, "no signal batch computed yet")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get latest batch", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load signals")
		return
	}

	if min := parseFloatParam(r, "min_percentile", 0); min > 0 {
		filtered := batch.Signals[:0:0]
		for _, s := range batch.Signals {
			if s.Percentile >= min {
				filtered = append(filtered, s)
			}
		}
		batch.Signals = filtered
	}

	writeJSON(w, http.StatusOK, batch)
}

// listHistoryResponse wraps the signal history response.
type listHistoryResponse struct {
	Signals []domain.SignalResult `json:"signals"`
}

// History returns stored signal results from previous passes, newest first.
// GET /api/signals/history?limit=50&offset=0
func (h *SignalsHandler) History(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	results, err := h.svc.History(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signal history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load signal history")
		return
	}

	writeJSON(w, http.StatusOK, listHistoryResponse{Signals: results})
}

// Refresh triggers a full recomputation pass synchronously and returns the
// fresh batch.
// POST /api/signals/refresh
func (h *SignalsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	batch, err := h.svc.RunPass(r.Context())
	if errors.Is(err, domain.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "upstream rate limit, try again later")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "refresh pass", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "recompute failed")
		return
	}

	writeJSON(w, http.StatusOK, batch)
}
