package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/you/snipebot/internal/domain"
)

// TokenScreener evaluates a token's tradeability on demand.
type TokenScreener interface {
	Screen(ctx context.Context, tokenAddress string) (domain.ScreenResult, error)
}

// ScreenHandler exposes the screener for ad-hoc checks from the dashboard.
type ScreenHandler struct {
	screener TokenScreener
	logger   *slog.Logger
}

// NewScreenHandler creates a ScreenHandler.
func NewScreenHandler(screener TokenScreener, logger *slog.Logger) *ScreenHandler {
	return &ScreenHandler{screener: screener, logger: logger}
}

// ScreenToken screens a single token and returns the per-condition verdict.
// GET /api/tokens/{token}/screen
func (h *ScreenHandler) ScreenToken(w http.ResponseWriter, r *http.Request) {
	token := pathParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token path parameter required")
		return
	}

	result, err := h.screener.Screen(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "market data unavailable for token")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: screen token failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to screen token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token_address": result.TokenAddress,
		"tradeable":     result.Tradeable,
		"reasons":       result.Reasons(),
		"evaluated_at":  result.EvaluatedAt,
	})
}
