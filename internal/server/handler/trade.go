package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/you/snipebot/internal/domain"
)

// TradeHistoryStore defines the trade queries the handler requires.
type TradeHistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Trade, error)
	ListByToken(ctx context.Context, tokenAddress string, opts domain.ListOpts) ([]domain.Trade, error)
}

// TradeHandler serves trade history endpoints.
type TradeHandler struct {
	trades TradeHistoryStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeHistoryStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// ListRecent returns the most recent trades across all tokens.
// GET /api/trades?limit=50
func (h *TradeHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	trades, err := h.trades.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}

// ListByToken returns trades for one token, newest first.
// GET /api/tokens/{token}/trades?limit=50&offset=0
func (h *TradeHandler) ListByToken(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token path parameter required")
		return
	}

	trades, err := h.trades.ListByToken(r.Context(), token, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list token trades failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
