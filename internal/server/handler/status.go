package handler

import (
	"net/http"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// StatusSource reports the bot's current operational state.
type StatusSource func() domain.BotStatus

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	status StatusSource
}

// NewStatusHandler creates a StatusHandler reading from the given source.
func NewStatusHandler(status StatusSource) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus responds with the bot's mode, dry-run flag, uptime, and counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status()

	resp := map[string]any{
		"mode":               st.Mode,
		"dry_run":            st.DryRun,
		"uptime_seconds":     st.UptimeSeconds,
		"open_positions":     st.OpenPositions,
		"pending_executions": st.PendingExecs,
	}
	if st.LastCycleAt != nil {
		resp["last_cycle_at"] = st.LastCycleAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}
