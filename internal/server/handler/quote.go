package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/you/snipebot/internal/domain"
)

// QuoteHandler serves the latest quote and risk snapshots from the Redis
// write-through cache. It never triggers an upstream fetch; a token the bot
// has not evaluated recently simply has no snapshot.
type QuoteHandler struct {
	snapshots domain.QuoteSnapshotCache
	logger    *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(snapshots domain.QuoteSnapshotCache, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{snapshots: snapshots, logger: logger}
}

// GetQuote returns the cached quote snapshot for a token.
// GET /api/tokens/{token}/quote
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token path parameter required")
		return
	}

	q, err := h.snapshots.GetQuote(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no quote snapshot for token")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get quote failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get quote")
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// GetRisk returns the cached risk snapshot for a token.
// GET /api/tokens/{token}/risk
func (h *QuoteHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token path parameter required")
		return
	}

	risk, err := h.snapshots.GetRisk(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no risk snapshot for token")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get risk failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get risk")
		return
	}

	writeJSON(w, http.StatusOK, risk)
}
