package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/you/snipebot/internal/domain"
)

// PositionLedger defines the ledger methods the position handler requires.
type PositionLedger interface {
	ListOpen() []domain.Position
	Get(tokenAddress string) (domain.Position, error)
}

// PositionHistoryStore provides access to closed positions.
type PositionHistoryStore interface {
	ListHistory(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	ledger  PositionLedger
	history PositionHistoryStore
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(ledger PositionLedger, history PositionHistoryStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		ledger:  ledger,
		history: history,
		logger:  logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListOpen returns every open position.
// GET /api/positions
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	positions := h.ledger.ListOpen()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetByToken returns the open position for one token.
// GET /api/positions/{token}
func (h *PositionHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token path parameter required")
		return
	}

	pos, err := h.ledger.Get(token)
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchPosition) {
			writeError(w, http.StatusNotFound, "no open position for token")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// ListHistory returns past positions, newest first.
// GET /api/positions/history?limit=50&offset=0
func (h *PositionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	positions, err := h.history.ListHistory(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list position history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list position history")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
